package telephony

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"
)

const maxRecordingBytes = 64 << 20

// TwilioClient fetches recording media from Twilio's media store.
type TwilioClient struct {
	accountSID string
	authToken  string
	client     *http.Client
}

func NewTwilioClient(accountSID, authToken string, client *http.Client) *TwilioClient {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &TwilioClient{accountSID: accountSID, authToken: authToken, client: client}
}

// Audio is a fetched recording.
type Audio struct {
	Data        []byte
	Filename    string
	ContentType string
}

// FetchRecording downloads recordingURL with account credentials. Twilio
// serves WAV for extensionless URLs; MP3 is requested instead to keep uploads
// to the transcriber small.
func (t *TwilioClient) FetchRecording(ctx context.Context, recordingURL string) (Audio, error) {
	target := recordingURL
	if path.Ext(target) == "" {
		target += ".mp3"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Audio{}, err
	}
	req.SetBasicAuth(t.accountSID, t.authToken)

	resp, err := t.client.Do(req)
	if err != nil {
		return Audio{}, fmt.Errorf("fetch recording: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Audio{}, fmt.Errorf("fetch recording: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRecordingBytes+1))
	if err != nil {
		return Audio{}, fmt.Errorf("read recording: %w", err)
	}
	if len(data) > maxRecordingBytes {
		return Audio{}, fmt.Errorf("recording too large (%d bytes)", len(data))
	}
	if len(data) == 0 {
		return Audio{}, fmt.Errorf("recording is empty")
	}

	return Audio{
		Data:        data,
		Filename:    path.Base(target),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
