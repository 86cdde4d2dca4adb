package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"gantry/internal/logging"
	"gantry/internal/storage"
)

var (
	// ErrUnsupported indicates the source needs the conversion server and
	// none is configured.
	ErrUnsupported = errors.New("conversion not supported for this format")
	// ErrUnreachable indicates the conversion server could not be reached.
	ErrUnreachable = errors.New("conversion server unreachable")
)

// RemoteError is a non-success response from the conversion server.
type RemoteError struct {
	Status int
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("server error: %d", e.Status)
}

// HTTPDoer describes the HTTP client used for remote conversion.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Gateway converts stored source files into instruction files.
type Gateway struct {
	store    *storage.Store
	logger   *slog.Logger
	client   HTTPDoer
	endpoint func() string
}

// NewGateway constructs a gateway. The endpoint func is consulted on every
// conversion so settings changes take effect without a restart; it returns
// an empty string when no server is configured.
func NewGateway(store *storage.Store, logger *slog.Logger, client HTTPDoer, endpoint func() string) *Gateway {
	if client == nil {
		client = http.DefaultClient
	}
	if endpoint == nil {
		endpoint = func() string { return "" }
	}
	return &Gateway{
		store:    store,
		logger:   logging.NewComponentLogger(logger, "convert"),
		client:   client,
		endpoint: endpoint,
	}
}

// Convert produces an instruction file from the named source file and
// returns the name of the entry created in the instructions collection.
func (g *Gateway) Convert(ctx context.Context, collection storage.Collection, name string) (string, error) {
	if storage.IsInstructionFile(name) {
		return g.convertLocal(collection, name)
	}
	serverURL := g.endpoint()
	if serverURL == "" {
		return "", ErrUnsupported
	}
	return g.convertRemote(ctx, serverURL, collection, name)
}

// convertLocal copies an already machine-ready file into the instructions
// collection unchanged.
func (g *Gateway) convertLocal(collection storage.Collection, name string) (string, error) {
	source, err := g.store.OpenRead(collection, name)
	if err != nil {
		return "", err
	}
	defer source.Close()

	out := storage.InstructionName(name)
	sink, err := g.store.Create(storage.Instructions, out)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(sink, source); err != nil {
		_ = sink.Close()
		_ = g.store.Delete(storage.Instructions, out)
		return "", fmt.Errorf("copy %s: %w", name, err)
	}
	if err := sink.Close(); err != nil {
		return "", fmt.Errorf("finish %s: %w", out, err)
	}
	g.logger.Info("instruction file copied",
		logging.String(logging.FieldCollection, string(collection)),
		logging.String(logging.FieldFile, name),
		logging.String("output", out),
	)
	return out, nil
}

// convertRemote streams the source to the conversion server and persists the
// response body as the instruction file.
func (g *Gateway) convertRemote(ctx context.Context, serverURL string, collection storage.Collection, name string) (string, error) {
	entry, err := g.store.Stat(collection, name)
	if err != nil {
		return "", err
	}
	source, err := g.store.OpenRead(collection, name)
	if err != nil {
		return "", err
	}
	defer source.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/api/convert", source)
	if err != nil {
		return "", fmt.Errorf("build convert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Filename", entry.Name)
	req.ContentLength = entry.SizeBytes

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &RemoteError{Status: resp.StatusCode}
	}

	out := storage.InstructionName(name)
	sink, err := g.store.Create(storage.Instructions, out)
	if err != nil {
		return "", err
	}
	written, err := io.Copy(sink, resp.Body)
	if err != nil {
		_ = sink.Close()
		_ = g.store.Delete(storage.Instructions, out)
		return "", fmt.Errorf("store conversion result: %w", err)
	}
	if err := sink.Close(); err != nil {
		return "", fmt.Errorf("finish %s: %w", out, err)
	}
	g.logger.Info("remote conversion complete",
		logging.String(logging.FieldCollection, string(collection)),
		logging.String(logging.FieldFile, name),
		logging.String("output", out),
		logging.Int64("bytes", written),
	)
	return out, nil
}
