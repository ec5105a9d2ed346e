// Package nfc derives the tag write commands for a contactless tag.
//
// Given a 7-byte tag identifier and a 16-byte configuration block, the
// package validates both inputs, hashes the identifier with SHA-1, picks four
// digest bytes with a fixed index scheme and frames them as the base command.
// The block becomes the block 4 write and blocks 5 to 8 are cleared.
//
// Every function here is pure: no I/O, no shared state. Callers may invoke
// Derive from any number of goroutines.
package nfc
