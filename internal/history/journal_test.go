package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liboqs-ci/internal/identity"
	"liboqs-ci/pkg/utils"
)

func testEntry(run, job, step string, exit int) Entry {
	return Entry{
		RunID:    run,
		Workflow: "build",
		Job:      job,
		Step:     step,
		ExitCode: exit,
		LogHash:  utils.HashString(step + " output"),
	}
}

func TestAppendAndVerify(t *testing.T) {
	signer, err := identity.Generate()
	require.NoError(t, err)

	j, err := Open(filepath.Join(t.TempDir(), "journal.jsonl"), signer)
	require.NoError(t, err)

	require.NoError(t, j.Append(testEntry("run-1", "amd64-buster", "Build liboqs", 0)))
	require.NoError(t, j.Append(testEntry("run-1", "amd64-buster", "Run tests", 0)))

	recs := j.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, 0, recs[0].Index)
	assert.Equal(t, recs[0].Hash, recs[1].PrevHash)
	assert.NotEmpty(t, recs[1].Signature)

	require.NoError(t, j.Verify())
}

func TestTamperingDetected(t *testing.T) {
	signer, err := identity.Generate()
	require.NoError(t, err)

	j, err := Open(filepath.Join(t.TempDir(), "journal.jsonl"), signer)
	require.NoError(t, err)
	require.NoError(t, j.Append(testEntry("run-1", "x86_64-xenial", "Run tests", 1)))

	j.records[0].LogHash = "faked"

	err = j.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash mismatch")
}

func TestBrokenChainDetected(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "journal.jsonl"), nil)
	require.NoError(t, err)

	require.NoError(t, j.Append(testEntry("run-1", "a", "one", 0)))
	require.NoError(t, j.Append(testEntry("run-1", "a", "two", 0)))

	// re-link the second record to a bogus predecessor, with a hash that
	// still matches its own contents
	j.records[1].PrevHash = "bogus"
	h, err := j.records[1].ComputeHash()
	require.NoError(t, err)
	j.records[1].Hash = h

	err = j.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain link broken")
}

func TestForgedSignatureDetected(t *testing.T) {
	signer, err := identity.Generate()
	require.NoError(t, err)

	j, err := Open(filepath.Join(t.TempDir(), "journal.jsonl"), signer)
	require.NoError(t, err)
	require.NoError(t, j.Append(testEntry("run-1", "a", "one", 0)))

	other, err := identity.Generate()
	require.NoError(t, err)
	j.records[0].PubKey = other.PublicKeyHex()

	err = j.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid signature")
}

func TestTwoHandlesExtendOneChain(t *testing.T) {
	// Two Journal handles on the same file, as two runner processes would
	// hold. Appends must chain against the file's tail, not each handle's
	// own view, or the chain forks.
	path := filepath.Join(t.TempDir(), "journal.jsonl")

	signer, err := identity.Generate()
	require.NoError(t, err)

	h1, err := Open(path, signer)
	require.NoError(t, err)
	h2, err := Open(path, signer)
	require.NoError(t, err)

	require.NoError(t, h1.Append(testEntry("run-1", "amd64-buster", "Build liboqs", 0)))
	require.NoError(t, h2.Append(testEntry("run-1", "x86_64-xenial", "Build liboqs", 0)))
	require.NoError(t, h1.Append(testEntry("run-1", "amd64-buster", "Run tests", 0)))

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, reopened.Verify())

	recs := reopened.Records()
	require.Len(t, recs, 3)
	for i, rec := range recs {
		assert.Equal(t, i, rec.Index)
		if i > 0 {
			assert.Equal(t, recs[i-1].Hash, rec.PrevHash)
		}
	}
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")

	signer, err := identity.Generate()
	require.NoError(t, err)

	j, err := Open(path, signer)
	require.NoError(t, err)
	require.NoError(t, j.Append(testEntry("run-1", "amd64-buster", "Clone liboqs", 0)))
	require.NoError(t, j.Append(testEntry("run-1", "amd64-buster", "Build liboqs", 0)))

	// reopening must yield the same verifiable chain
	j2, err := Open(path, nil)
	require.NoError(t, err)
	require.Len(t, j2.Records(), 2)
	require.NoError(t, j2.Verify())
	assert.Equal(t, j.LastHash(), j2.LastHash())

	// and appends continue the chain
	require.NoError(t, j2.Append(testEntry("run-2", "x86_64-xenial", "Run tests", 0)))
	require.NoError(t, j2.Verify())
	assert.Equal(t, j.LastHash(), j2.Records()[2].PrevHash)
}
