// Package language normalizes caller-supplied language hints and the
// languages reported by whisperx.
//
// Hints may arrive as ISO 639-1 codes, ISO 639-2 codes, BCP 47 tags such as
// "pt-BR", or English names. Everything is reduced to an ISO 639-1 base code
// the speech engine can transcribe; anything else is ErrUnknown.
package language
