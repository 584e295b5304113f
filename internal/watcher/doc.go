// Package watcher turns file system changes into sync engine notifications.
//
// fsnotify watches the workspace root and every non-hidden subdirectory;
// directories created later are added as they appear. Events for document
// paths are coalesced by a Debouncer, and each batch calls MarkDirty once.
// The watcher is an adapter: the index core never depends on it.
package watcher
