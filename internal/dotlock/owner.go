package dotlock

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// Owner is the record stored inside a lock file.
type Owner struct {
	Token      string    `json:"token"`
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	AcquiredAt time.Time `json:"acquired_at"`
}

func newOwner(now time.Time) Owner {
	return Owner{
		Token:      uuid.NewString(),
		PID:        os.Getpid(),
		Hostname:   hostname(),
		AcquiredAt: now,
	}
}

// ReadOwner returns the owner record of the lock file at path.
func ReadOwner(path string) (Owner, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Owner{}, err
	}

	var owner Owner

	if err := json.Unmarshal(b, &owner); err != nil {
		return Owner{}, fmt.Errorf("failed to parse lock file: %w", err)
	}

	return owner, nil
}

func (o Owner) String() string {
	return fmt.Sprintf("pid %v on %v since %v", o.PID, o.Hostname, o.AcquiredAt.Format(time.RFC3339))
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}

	return name
}
