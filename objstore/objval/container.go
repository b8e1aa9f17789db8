package objval

import (
	"time"
)

// ContainerLockingStatus represents the container-level object locking defaults.
type ContainerLockingStatus struct {
	// Enabled - if set to true then object locking is enabled for the container.
	Enabled bool

	// DefaultMode is the retention mode applied to blobs which don't specify one.
	DefaultMode LockMode

	// DefaultDays/DefaultYears make up the default retention period.
	DefaultDays  int
	DefaultYears int
}

// Container represents a namespace which owns a set of uniquely keyed blobs.
type Container struct {
	Name         string
	CreationDate time.Time
	Locking      ContainerLockingStatus

	// Blobs is the blob registry keyed by the composite path+name key. Access is guarded by the owning backend's
	// mutex; it should only be accessed directly to inspect state (to perform assertions) once testing is complete.
	Blobs map[string]*Blob

	cors []CorsRule
}

// NewContainer returns a new empty container with the given name.
func NewContainer(name string) *Container {
	return &Container{
		Name:         name,
		CreationDate: time.Now().UTC(),
		Blobs:        make(map[string]*Blob),
	}
}

// CreationDateISO8601 returns the creation date in the ISO-8601 format used in listing bodies.
func (c *Container) CreationDateISO8601() string {
	return c.CreationDate.UTC().Format("2006-01-02T15:04:05Z")
}

// SetCORS validates then replaces the containers CORS rules.
func (c *Container) SetCORS(rules []CorsRule) error {
	if len(rules) > MaxCORSRules {
		return ErrTooManyCORSRules
	}

	for _, rule := range rules {
		if err := rule.Valid(); err != nil {
			return err
		}
	}

	c.cors = rules

	return nil
}

// DeleteCORS removes all CORS rules from the container.
func (c *Container) DeleteCORS() {
	c.cors = nil
}

// CORS returns the containers current CORS rules in the order they were set.
func (c *Container) CORS() []CorsRule {
	return c.cors
}

// HasDefaultLock returns a boolean indicating whether new blobs inherit a default retention mode.
func (c *Container) HasDefaultLock() bool {
	return c.Locking.Enabled && c.Locking.DefaultMode != LockModeUndefined
}

// DefaultRetention returns the time until which new blobs are retained under the containers default lock.
func (c *Container) DefaultRetention() time.Time {
	now := time.Now().UTC()

	return now.AddDate(0, 0, c.Locking.DefaultDays+c.Locking.DefaultYears*365)
}
