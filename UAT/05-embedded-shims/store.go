package store

import "strings"

// Disk is the default storage implementation.
type Disk struct {
	Root string
}

// Read returns the contents stored under key.
func (d *Disk) Read(key string) string {
	return "disk:" + d.Root + "/" + key
}

// Store embeds Disk and may override Read with its own implementation. A nil
// Read field falls back to Disk.Read through Load.
type Store struct {
	*Disk

	Read func(key string) string
}

// Load reads key, preferring the Read override.
func (s *Store) Load(key string) string {
	if s.Read != nil {
		return s.Read(key)
	}

	return s.Disk.Read(key)
}

// Profile is a service built from two embedded layers. Its Lookup
// operation is promoted from the embedded Directory.
type Profile struct {
	*Directory

	Name string
}

// Directory looks users up.
type Directory struct {
	Lookup func(user string) string
}

// Greeting greets user by their directory name.
func (p *Profile) Greeting(user string) string {
	return "hello " + strings.TrimSpace(p.Lookup(user))
}
