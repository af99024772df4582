// Package whisperx runs WhisperX speech inference over extracted PCM audio.
//
// Transcribe writes the audio into a private workspace, invokes WhisperX via
// uvx, and parses the JSON result into text, detected language, duration, and
// segments. Failures are tagged with services.ErrInference so the workflow can
// surface them as inference faults, and no workspace outlives its call.
//
// Configuration options (model, CUDA, VAD method) are passed via Config.
package whisperx
