package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/statements-tracker/internal/async"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
)

type fakeSubmitter struct {
	mu      sync.Mutex
	uploads []entity.Upload
}

func (f *fakeSubmitter) Submit(_ context.Context, up entity.Upload) (*entity.Statement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, up)
	return &entity.Statement{ID: uuid.New(), RunID: uuid.New()}, nil
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []async.Job
}

func (q *fakeQueue) Enqueue(_ context.Context, job async.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) Shutdown(context.Context) {}

func TestParseFilename(t *testing.T) {
	def := Defaults{Bank: "Default Bank", Account: "Main", Currency: "USD"}
	tests := []struct {
		name    string
		file    string
		want    Metadata
		wantErr bool
	}{
		{
			name: "convention",
			file: "/inbox/chase_checking-1234_2024-01.pdf",
			want: Metadata{Bank: "chase", Account: "checking 1234", Year: 2024, Month: 1, Currency: "USD"},
		},
		{
			name: "account with underscore",
			file: "wells-fargo_joint_savings_2023-12.png",
			want: Metadata{Bank: "wells fargo", Account: "joint_savings", Year: 2023, Month: 12, Currency: "USD"},
		},
		{
			name: "period only uses defaults",
			file: "statement 202402.pdf",
			want: Metadata{Bank: "Default Bank", Account: "Main", Year: 2024, Month: 2, Currency: "USD"},
		},
		{name: "no period", file: "scan.pdf", wantErr: true},
		{name: "bad month", file: "chase_checking_2024-13.pdf", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFilename(tt.file, def)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFilename_NoDefaults(t *testing.T) {
	_, err := ParseFilename("2024-03.pdf", Defaults{})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestIngestDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "chase_checking_2024-01.pdf"), "jan")
	writeFile(t, filepath.Join(root, "sub", "chase_checking_2024-02.PDF"), "feb")
	writeFile(t, filepath.Join(root, "copy", "chase_checking_2024-01.pdf"), "jan")
	writeFile(t, filepath.Join(root, "notes.txt"), "ignore me")
	writeFile(t, filepath.Join(root, "undated.png"), "png")
	writeFile(t, filepath.Join(root, ".hidden", "chase_checking_2024-03.pdf"), "mar")

	sub := &fakeSubmitter{}
	q := &fakeQueue{}
	ing := NewIngestor(sub, q, Defaults{Currency: "USD"}, nil)

	results, stats, err := ing.IngestDirectory(context.Background(), root, true)
	require.NoError(t, err)

	assert.Equal(t, uint32(4), stats.Matched)
	assert.Equal(t, uint32(3), stats.Succeeded)
	assert.Equal(t, uint32(1), stats.Deduplicated)
	assert.Equal(t, uint32(1), stats.Failed)
	assert.Len(t, results, 4)

	require.Len(t, sub.uploads, 2)
	assert.Len(t, q.jobs, 2)
	for _, up := range sub.uploads {
		assert.Equal(t, "application/pdf", up.MIMEType)
		assert.Equal(t, "chase", up.BankName)
		assert.Equal(t, "checking", up.AccountName)
		assert.Equal(t, "USD", up.Currency)
	}
}

func TestIngestDirectory_RequiresRoot(t *testing.T) {
	ing := NewIngestor(&fakeSubmitter{}, nil, Defaults{}, nil)
	_, _, err := ing.IngestDirectory(context.Background(), " ", false)
	assert.Error(t, err)
}

func TestWatch_EmitsExistingAndNewFiles(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "chase_checking_2024-01.pdf")
	writeFile(t, existing, "jan")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := Watch(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 20 * time.Millisecond}, nil)
	require.NoError(t, err)

	next := func() string {
		select {
		case p := <-events:
			return p
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for watch event")
			return ""
		}
	}
	assert.Equal(t, existing, next())

	created := filepath.Join(root, "chase_checking_2024-02.pdf")
	writeFile(t, filepath.Join(root, "readme.txt"), "skip")
	writeFile(t, created, "feb")
	assert.Equal(t, created, next())

	cancel()
	for range events {
	}
}

func TestWatch_NoRoots(t *testing.T) {
	_, _, err := Watch(context.Background(), WatchConfig{}, nil)
	assert.Error(t, err)
}
