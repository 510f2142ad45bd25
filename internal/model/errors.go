package model

import "fmt"

// FetchError reports that bytes could not be obtained from a resolved source
type FetchError struct {
	Source ResolvedSource
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source.Location, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StorageError reports a failed existence check, read, or write against blob storage
type StorageError struct {
	Op   string // exists, read, write, mkdir
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
