package history

import (
	"fmt"

	"liboqs-ci/internal/identity"
)

// Verify recomputes every record hash, checks the chain links and indices,
// and verifies record signatures where present. Any mismatch means the
// journal was tampered with after the fact.
func (j *Journal) Verify() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for i, rec := range j.records {
		h, err := rec.ComputeHash()
		if err != nil {
			return fmt.Errorf("compute hash for record %d: %w", i, err)
		}
		if h != rec.Hash {
			return fmt.Errorf("hash mismatch at record %d", i)
		}

		if i > 0 && rec.PrevHash != j.records[i-1].Hash {
			return fmt.Errorf("chain link broken at record %d", i)
		}
		if rec.Index != i {
			return fmt.Errorf("index mismatch: expected %d, got %d", i, rec.Index)
		}

		if rec.Signature != "" {
			ok, err := identity.Verify(rec.PubKey, []byte(rec.Hash), rec.Signature)
			if err != nil {
				return fmt.Errorf("verify signature for record %d: %w", i, err)
			}
			if !ok {
				return fmt.Errorf("invalid signature at record %d", i)
			}
		}
	}
	return nil
}
