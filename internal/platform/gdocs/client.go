package gdocs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/phrazzld/docgen/internal/authoring"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/api/docs/v1"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Defaults for Config zero values.
const (
	DefaultRateLimit   = 5.0
	DefaultBurst       = 10
	DefaultChunkSize   = 50
	DefaultParallelism = 2
)

// Config configures the Google Docs client.
type Config struct {
	// CredentialsFile is a service account key file. Empty uses Application
	// Default Credentials.
	CredentialsFile string
	// OutputFolderID is the Drive folder generated documents are copied into.
	// Empty keeps the copy next to its source.
	OutputFolderID string
	// RateLimit is the sustained request rate per second across all calls.
	RateLimit float64
	Burst     int
	// ChunkSize is the number of replacements sent per batchUpdate.
	ChunkSize int
	// Parallelism bounds concurrent batchUpdate calls for one document.
	Parallelism int
}

// Client implements authoring.Client with Drive and Docs.
type Client struct {
	drive       *drive.Service
	docs        *docs.Service
	limiter     *rate.Limiter
	folderID    string
	chunkSize   int
	parallelism int
	logger      *slog.Logger
}

var _ authoring.Client = (*Client)(nil)

// New creates a Client. Extra options are passed to both services, which is
// how tests point them at a fake endpoint.
func New(ctx context.Context, cfg Config, logger *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultParallelism
	}
	if cfg.CredentialsFile != "" {
		opts = append([]option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}, opts...)
	}

	driveSvc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	docsSvc, err := docs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docs service: %w", err)
	}

	return &Client{
		drive:       driveSvc,
		docs:        docsSvc,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		folderID:    cfg.OutputFolderID,
		chunkSize:   cfg.ChunkSize,
		parallelism: cfg.Parallelism,
		logger:      logger.With("component", "gdocs"),
	}, nil
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// FetchSource returns the plain text of a Google Doc: body, then headers
// and footers.
func (c *Client) FetchSource(ctx context.Context, sourceRef string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	doc, err := c.docs.Documents.Get(sourceRef).Context(ctx).Do()
	if err != nil {
		return "", mapError("fetch source", err)
	}

	var b strings.Builder
	if doc.Body != nil {
		writeContent(&b, doc.Body.Content)
	}
	for _, id := range sortedKeys(doc.Headers) {
		writeContent(&b, doc.Headers[id].Content)
	}
	for _, id := range sortedKeys(doc.Footers) {
		writeContent(&b, doc.Footers[id].Content)
	}
	return b.String(), nil
}

func writeContent(b *strings.Builder, content []*docs.StructuralElement) {
	for _, el := range content {
		switch {
		case el.Paragraph != nil:
			for _, pe := range el.Paragraph.Elements {
				if pe.TextRun != nil {
					b.WriteString(pe.TextRun.Content)
				}
			}
		case el.Table != nil:
			for _, row := range el.Table.TableRows {
				for _, cell := range row.TableCells {
					writeContent(b, cell.Content)
				}
			}
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CopyTemplate copies the source document and returns the copy's file id.
func (c *Client) CopyTemplate(ctx context.Context, sourceRef, name string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	file := &drive.File{Name: name}
	if c.folderID != "" {
		file.Parents = []string{c.folderID}
	}
	copied, err := c.drive.Files.Copy(sourceRef, file).
		SupportsAllDrives(true).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", mapError("copy template", err)
	}
	c.logger.DebugContext(ctx, "template copied", "source_ref", sourceRef, "artifact_ref", copied.Id)
	return copied.Id, nil
}

// ApplySubstitutions replaces every marker in the artifact. Replacements are
// split into chunks sent concurrently; an error in any chunk fails the call
// and the caller is expected to retry the whole set.
func (c *Client) ApplySubstitutions(ctx context.Context, artifactRef string, substitutions map[string]string) error {
	requests := replaceRequests(substitutions)
	if len(requests) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for start := 0; start < len(requests); start += c.chunkSize {
		chunk := requests[start:min(start+c.chunkSize, len(requests))]
		g.Go(func() error {
			if err := c.wait(gctx); err != nil {
				return err
			}
			_, err := c.docs.Documents.BatchUpdate(artifactRef, &docs.BatchUpdateDocumentRequest{
				Requests: chunk,
			}).Context(gctx).Do()
			return mapError("apply substitutions", err)
		})
	}
	return g.Wait()
}

// replaceRequests builds one case-sensitive ReplaceAllText per marker,
// ordered by marker.
func replaceRequests(substitutions map[string]string) []*docs.Request {
	markers := sortedKeys(substitutions)
	out := make([]*docs.Request, 0, len(markers))
	for _, marker := range markers {
		out = append(out, &docs.Request{
			ReplaceAllText: &docs.ReplaceAllTextRequest{
				ContainsText: &docs.SubstringMatchCriteria{Text: marker, MatchCase: true},
				ReplaceText:  substitutions[marker],
				// An empty value must still be sent to erase the marker.
				ForceSendFields: []string{"ReplaceText"},
			},
		})
	}
	return out
}

// DeleteArtifact deletes a generated document. A document that is already
// gone counts as deleted.
func (c *Client) DeleteArtifact(ctx context.Context, artifactRef string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	err := c.drive.Files.Delete(artifactRef).SupportsAllDrives(true).Context(ctx).Do()
	if err = mapError("delete artifact", err); err != nil && !isNotFound(err) {
		return err
	}
	return nil
}
