// Package fibre implements cooperative, stackful coroutines ("fibres")
// within a single goroutine-local "thread" (a *Host), a layered
// selector stack that decides which fibre runs next, and an async
// suspension protocol that lets a callee yield control to a higher-level
// dispatcher while advertising how it should be resumed.
//
// A Host stands in for the per-OS-thread globals the original C library
// keeps in __thread storage: push a selector onto it, create fibres
// against it, and schedule between them. Nothing here makes fibres run
// in parallel — at most one fibre (or the Host's origin) is ever
// actually executing, enforced by the context-switch rendezvous in
// internal/arch.
package fibre
