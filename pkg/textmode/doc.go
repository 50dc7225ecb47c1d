// Package textmode holds the in-memory model of a text-mode art document and
// the codec that moves it to and from disk.
//
// A Document is a grid of Blocks (character code plus foreground and
// background palette indices) addressed by (x, y) at linear index
// y*Columns+x, together with SAUCE metadata: title, author, group, date and
// free-form comments.
//
// Compress produces the run-length encoded form that is sent to clients when
// they join and that snapshot stores persist. BinCodec reads and writes
// BinaryText (.bin) files with an optional SAUCE record.
package textmode
