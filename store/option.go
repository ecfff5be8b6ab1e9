package store

import (
	"os"

	"github.com/ProtonMail/uidlist/imap"
)

type Option interface {
	config(*Store)
}

// WithUIDValidityGenerator sets how new lists pick their UIDVALIDITY.
func WithUIDValidityGenerator(gen imap.UIDValidityGenerator) Option {
	return &withUIDValidityGenerator{
		gen: gen,
	}
}

type withUIDValidityGenerator struct {
	gen imap.UIDValidityGenerator
}

func (opt withUIDValidityGenerator) config(store *Store) {
	store.gen = opt.gen
}

// WithFileMode sets the permissions of the written list file.
func WithFileMode(mode os.FileMode) Option {
	return &withFileMode{
		mode: mode,
	}
}

type withFileMode struct {
	mode os.FileMode
}

func (opt withFileMode) config(store *Store) {
	store.mode = opt.mode
}
