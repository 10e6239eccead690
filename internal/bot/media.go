package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

// maxMediaBytes caps downloaded voice notes and photos.
const maxMediaBytes = 20 << 20

// fileURL resolves a Telegram file id to its download URL.
func (b *Bot) fileURL(fileID string) (string, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("resolve file %s: %w", fileID, err)
	}
	return file.Link(b.api.Token), nil
}

// downloadBytes fetches a Telegram file into memory.
func (b *Bot) downloadBytes(ctx context.Context, fileID string) ([]byte, error) {
	link, err := b.fileURL(fileID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
}

// downloadToTemp fetches a Telegram file into a uniquely named temp file.
// The caller must invoke cleanup.
func (b *Bot) downloadToTemp(ctx context.Context, fileID, suffix string) (string, func(), error) {
	data, err := b.downloadBytes(ctx, fileID)
	if err != nil {
		return "", nil, err
	}

	path := filepath.Join(os.TempDir(), uuid.NewString()+suffix)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}

	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			b.logger.Warn("failed to remove temp file", "path", path, "error", err)
		}
	}
	return path, cleanup, nil
}

// transcribeFile runs the transcription engine over a downloaded voice
// note.
func (b *Bot) transcribeFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return b.engine.Transcribe(ctx, filepath.Base(path), f)
}
