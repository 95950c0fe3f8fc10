// Package storage keeps attachment bytes outside the relational store.
package storage

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound is returned by Open for an unknown key.
	ErrNotFound = errors.New("blob not found")
	// ErrEmpty is returned by Put when the reader yields no bytes.
	ErrEmpty = errors.New("blob is empty")
	// ErrTooLarge is returned by Put when the reader exceeds the size limit.
	ErrTooLarge = errors.New("blob exceeds size limit")
	// ErrInvalidKey is returned for keys that escape the storage root.
	ErrInvalidKey = errors.New("invalid storage key")
)

// Object describes a stored blob.
type Object struct {
	Key  string
	Size int64
	// Created is false when identical content was already stored under Key.
	Created bool
}

// FileStorage stores opaque blobs grouped by ticket.
type FileStorage interface {
	Put(ctx context.Context, ticketID string, r io.Reader) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
