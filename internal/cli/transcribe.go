package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/scribecli/scribe/internal/audio"
	"github.com/scribecli/scribe/internal/download"
	"github.com/scribecli/scribe/internal/whisper"
)

// transcribeAudio is the core flow: resolve the model (downloading it when
// allowed), run the engine over the audio file, return the trimmed text.
func (a *appState) transcribeAudio(ctx context.Context, audioPath, modelRef string) (string, error) {
	audioPath = filepath.Clean(audioPath)
	if _, err := os.Stat(audioPath); err != nil {
		return "", fmt.Errorf("audio file not found: %w", err)
	}

	a.probeInput(audioPath)

	model, err := a.ensureModelAvailable(ctx, modelRef)
	if err != nil {
		return "", err
	}

	engine, err := whisper.NewExecEngine(a.log())
	if err != nil {
		return "", err
	}

	a.log().Info("transcribing...", zap.String("audio", audioPath), zap.String("model", model.Path), zap.String("language", a.language))
	stopSpinner := startSpinner(a.progressEnabled(), "Transcribing")
	started := a.now()

	transcript, err := engine.Transcribe(ctx, whisper.TranscriptionRequest{
		AudioPath: audioPath,
		ModelPath: model.Path,
		Language:  a.language,
	})
	stopSpinner()
	if err != nil {
		a.log().Warn("transcription failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return "", err
	}
	a.log().Info("transcription finished", zap.Duration("elapsed", time.Since(started)))

	return transcript, nil
}

// probeInput logs WAV format details when the input is a WAV file. Probe
// failures are logged and ignored; the engine gives the authoritative error
// for undecodable input.
func (a *appState) probeInput(audioPath string) {
	if !audio.IsWAVPath(audioPath) {
		return
	}

	info, err := audio.ProbeWAV(audioPath)
	if err != nil {
		if errors.Is(err, audio.ErrNotWAV) || errors.Is(err, audio.ErrInvalidWAV) {
			a.log().Warn("input does not look like a valid wav file", zap.String("audio", audioPath), zap.Error(err))
			return
		}
		a.log().Warn("could not probe audio file", zap.String("audio", audioPath), zap.Error(err))
		return
	}

	a.log().Info("input audio",
		zap.String("audio", audioPath),
		zap.Int("sample_rate", info.SampleRate),
		zap.Int("channels", info.Channels),
		zap.Int("bits", info.BitsPerSample),
		zap.Duration("duration", info.Duration),
	)
}

func (a *appState) ensureModelAvailable(ctx context.Context, modelRef string) (whisper.ResolvedModel, error) {
	modelDir, err := a.modelStorageDir()
	if err != nil {
		return whisper.ResolvedModel{}, err
	}

	resolved, err := whisper.ResolveModel(modelRef, modelDir)
	if err != nil {
		return whisper.ResolvedModel{}, err
	}

	if !resolved.NeedsDownload {
		return resolved, nil
	}

	if !a.autoDownload {
		return whisper.ResolvedModel{}, fmt.Errorf("model %q is missing at %s; run `scribe setup --model %s` or use --auto-download=true", resolved.Name, resolved.Path, resolved.Name)
	}

	a.log().Info("model not found, downloading", zap.String("model", resolved.Name), zap.String("destination", resolved.Path))
	if err := download.DownloadFile(ctx, download.Options{
		URL:            resolved.URL,
		Destination:    resolved.Path,
		ExpectedSHA256: resolved.SHA256,
		ChecksumURL:    resolved.SHA256URL,
		NoProgress:     a.noProgress,
		Logger:         a.log(),
	}); err != nil {
		return whisper.ResolvedModel{}, fmt.Errorf("download model %q: %w", resolved.Name, err)
	}

	resolved.NeedsDownload = false
	return resolved, nil
}
