package forward

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/jingkaihe/enginelog/internal/errx"
	"github.com/jingkaihe/enginelog/pkg/logging"
)

// DefaultIndexPrefix names the daily indices: enginelog-2006.01.02.
const DefaultIndexPrefix = "enginelog"

// OpenSearchOptions configures an OpenSearchSink.
type OpenSearchOptions struct {
	Addresses          []string
	IndexPrefix        string
	Username           string
	Password           string
	InsecureSkipVerify bool
	Timeout            time.Duration
	IncludeEphemeral   bool
}

// OpenSearchSink indexes each record into a daily index. Document IDs are
// derived from engine ID and sequence, so a retried write replaces rather
// than duplicates.
type OpenSearchSink struct {
	client           *opensearch.Client
	prefix           string
	timeout          time.Duration
	includeEphemeral bool
}

func NewOpenSearchSink(opts OpenSearchOptions) (*OpenSearchSink, error) {
	if len(opts.Addresses) == 0 {
		return nil, errx.With(ErrConfig, ": opensearch needs at least one address")
	}
	cfg := opensearch.Config{
		Addresses: opts.Addresses,
		Username:  opts.Username,
		Password:  opts.Password,
	}
	if opts.InsecureSkipVerify {
		cfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	client, err := opensearch.NewClient(cfg)
	if err != nil {
		return nil, errx.Wrap(ErrCreateClient, err)
	}

	prefix := opts.IndexPrefix
	if prefix == "" {
		prefix = DefaultIndexPrefix
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OpenSearchSink{
		client:           client,
		prefix:           prefix,
		timeout:          timeout,
		includeEphemeral: opts.IncludeEphemeral,
	}, nil
}

func (s *OpenSearchSink) Name() string { return "opensearch" }

func (s *OpenSearchSink) Write(event *logging.Event) error {
	if event.Ephemeral && !s.includeEphemeral {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return errx.Wrap(ErrEncode, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	req := opensearchapi.IndexRequest{
		Index:      IndexName(s.prefix, event.Timestamp),
		DocumentID: fmt.Sprintf("%s-%d", event.EngineID, event.Seq),
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return errx.Wrap(ErrIndex, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errx.With(ErrIndex, ": %s", res.String())
	}
	return nil
}

func (s *OpenSearchSink) Close() error { return nil }

// IndexName returns the daily index for a record accepted at ts.
func IndexName(prefix string, ts time.Time) string {
	return prefix + "-" + ts.UTC().Format("2006.01.02")
}
