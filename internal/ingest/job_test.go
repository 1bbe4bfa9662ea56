package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/callsight/ingest/internal/store"
	"github.com/callsight/ingest/internal/transcribe"
)

// fakeStore is an in-memory Store. Methods are safe for concurrent use since
// the dispatcher goroutine writes file statuses while the poll loop reads.
type fakeStore struct {
	mu          sync.Mutex
	jobs        map[string]*store.ImportJob
	files       []*store.FileRecord
	calls       []*store.CallRecord
	queue       []string
	statusPolls int
	nextID      int
}

func newFakeStore(jobIDs ...string) *fakeStore {
	fs := &fakeStore{jobs: map[string]*store.ImportJob{}}
	for _, id := range jobIDs {
		fs.jobs[id] = &store.ImportJob{ID: id}
	}
	return fs
}

func (f *fakeStore) genID() string {
	f.nextID++
	return fmt.Sprintf("rec-%d", f.nextID)
}

func (f *fakeStore) GetImportJob(_ context.Context, id string) (*store.ImportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s not found", id)
	}
	cp := *j
	return &cp, nil
}

func (f *fakeStore) UpdateImportJobStatus(_ context.Context, id, status string, totalFiles int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if j, ok := f.jobs[id]; ok {
		j.Status = status
		j.TotalFiles = totalFiles
	}
	return nil
}

func (f *fakeStore) UpdateImportJobError(_ context.Context, id, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if j, ok := f.jobs[id]; ok {
		j.ErrorMessage = msg
	}
	return nil
}

func (f *fakeStore) CompleteImportJob(_ context.Context, id, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if j, ok := f.jobs[id]; ok {
		j.Status = store.JobCompleted
		if msg != "" {
			j.ErrorMessage = msg
		}
	}
	return nil
}

func (f *fakeStore) FindFileRecord(_ context.Context, jobID, originalURL string) (*store.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.files {
		if r.JobID == jobID && r.OriginalURL == originalURL {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateFileRecord(_ context.Context, r *store.FileRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.ID == "" {
		r.ID = f.genID()
	}
	cp := *r
	f.files = append(f.files, &cp)
	return nil
}

func (f *fakeStore) UpdateFileRecord(_ context.Context, r *store.FileRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.files {
		if existing.ID == r.ID {
			cp := *r
			f.files[i] = &cp
			return nil
		}
	}
	return fmt.Errorf("file record %s not found", r.ID)
}

func (f *fakeStore) FileRecordStatus(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusPolls++
	for _, r := range f.files {
		if r.ID == id {
			return r.Status, nil
		}
	}
	return "", fmt.Errorf("file record %s not found", id)
}

func (f *fakeStore) setFileStatus(id, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.files {
		if r.ID == id {
			r.Status = status
			return
		}
	}
}

func (f *fakeStore) CreateCallRecord(_ context.Context, r *store.CallRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.ID == "" {
		r.ID = f.genID()
	}
	cp := *r
	f.calls = append(f.calls, &cp)
	return nil
}

func (f *fakeStore) EnqueueTranscription(_ context.Context, callRecordID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, callRecordID)
	return nil
}

func (f *fakeStore) fileByURL(url string) *store.FileRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.files {
		if r.OriginalURL == url {
			cp := *r
			return &cp
		}
	}
	return nil
}

func (f *fakeStore) snapshot() (files []store.FileRecord, calls []store.CallRecord, job map[string]*store.ImportJob) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.files {
		files = append(files, *r)
	}
	for _, c := range f.calls {
		calls = append(calls, *c)
	}
	job = map[string]*store.ImportJob{}
	for k, v := range f.jobs {
		cp := *v
		job[k] = &cp
	}
	return
}

type fakeStorage struct {
	mu      sync.Mutex
	uploads []string
}

func (f *fakeStorage) Upload(_ context.Context, _, objectPath string, _ []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, objectPath)
	return objectPath, nil
}

func (f *fakeStorage) Sign(_ context.Context, _, objectPath string, _ time.Duration) (string, error) {
	return "https://signed.example.org/" + objectPath, nil
}

// completingDispatch marks the file record completed, standing in for the
// real transcription worker.
func completingDispatch(fs *fakeStore) Dispatch {
	return func(req transcribe.Request) {
		fs.setFileStatus(req.FileID, store.FileCompleted)
	}
}

// audioServer serves an HTML index of audio links plus the files themselves.
func audioServer(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		var b strings.Builder
		b.WriteString("<html><body>")
		for name := range files {
			fmt.Fprintf(&b, `<a href="/files/%s">%s</a>`, name, name)
		}
		b.WriteString("</body></html>")
		w.Write([]byte(b.String()))
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/files/")
		data, ok := files[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(data)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func importRequest(jobID, sourceURL string) ImportRequest {
	return ImportRequest{
		JobID:        jobID,
		CustomerName: "Acme",
		SourceURL:    sourceURL,
		BucketName:   "recordings",
		UserID:       "user-1",
	}
}

func TestProcessImportJobEndToEnd(t *testing.T) {
	initTest(t, nil)

	srv := audioServer(t, map[string][]byte{
		"a.mp3": []byte("aaa"),
		"b.wav": []byte("bbb"),
	})
	fs := newFakeStore("job-1")
	sg := &fakeStorage{}
	imp := New(fs, sg, completingDispatch(fs))

	err := imp.ProcessImportJob(context.Background(), importRequest("job-1", srv.URL+"/"))
	require.NoError(t, err)

	files, calls, jobs := fs.snapshot()
	require.Len(t, files, 2)
	require.Len(t, calls, 2)
	for _, f := range files {
		require.Equal(t, store.FileCompleted, f.Status)
		require.Empty(t, f.ErrorMessage)
	}
	for _, c := range calls {
		require.Equal(t, "Acme", c.CustomerName)
		require.Equal(t, "recordings", c.BucketName)
		require.True(t, strings.HasPrefix(c.StoragePath, "user-1/job-1/"))
	}
	require.Len(t, fs.queue, 2)
	require.Equal(t, store.JobCompleted, jobs["job-1"].Status)
	require.Equal(t, 2, jobs["job-1"].TotalFiles)
	require.Contains(t, jobs["job-1"].ErrorMessage, skipCallLogNote)
}

func TestProcessImportJobEmptyDiscovery(t *testing.T) {
	initTest(t, nil)

	srv := audioServer(t, nil)
	fs := newFakeStore("job-1")
	imp := New(fs, &fakeStorage{}, nil)

	err := imp.ProcessImportJob(context.Background(), importRequest("job-1", srv.URL+"/"))
	require.NoError(t, err)

	files, calls, jobs := fs.snapshot()
	require.Empty(t, files)
	require.Empty(t, calls)
	require.Equal(t, store.JobCompleted, jobs["job-1"].Status)
	require.Contains(t, jobs["job-1"].ErrorMessage, noFilesMessage)
}

func TestProcessImportJobDiscoveryFailurePropagates(t *testing.T) {
	initTest(t, nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	fs := newFakeStore("job-1")
	imp := New(fs, &fakeStorage{}, nil)

	err := imp.ProcessImportJob(context.Background(), importRequest("job-1", srv.URL))
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 404")

	_, _, jobs := fs.snapshot()
	require.NotEqual(t, store.JobCompleted, jobs["job-1"].Status)
}

func TestProcessImportJobPerFileIsolation(t *testing.T) {
	initTest(t, nil)

	// index lists both files but only good.mp3 is downloadable
	srv := audioServer(t, map[string][]byte{"good.mp3": []byte("data")})
	index := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body>
			<a href="%s/files/missing.mp3">missing</a>
			<a href="%s/files/good.mp3">good</a>
		</body></html>`, srv.URL, srv.URL)
	}))
	defer index.Close()

	fs := newFakeStore("job-1")
	imp := New(fs, &fakeStorage{}, completingDispatch(fs))

	err := imp.ProcessImportJob(context.Background(), importRequest("job-1", index.URL))
	require.NoError(t, err, "one bad file must not fail the job")

	files, calls, jobs := fs.snapshot()
	require.Len(t, files, 2)
	require.Len(t, calls, 1)
	require.Equal(t, store.JobCompleted, jobs["job-1"].Status)

	bad := fs.fileByURL(srv.URL + "/files/missing.mp3")
	require.NotNil(t, bad)
	require.Equal(t, store.FileFailed, bad.Status)
	require.Contains(t, bad.ErrorMessage, "Failed to download")

	good := fs.fileByURL(srv.URL + "/files/good.mp3")
	require.NotNil(t, good)
	require.Equal(t, store.FileCompleted, good.Status)
}

func TestProcessImportJobOversizeFile(t *testing.T) {
	initTest(t, func(c *Config) { c.MaxFileBytes = 4 })

	srv := audioServer(t, map[string][]byte{"big.mp3": []byte("way too large")})
	fs := newFakeStore("job-1")
	imp := New(fs, &fakeStorage{}, nil)

	err := imp.ProcessImportJob(context.Background(), importRequest("job-1", srv.URL+"/"))
	require.NoError(t, err)

	rec := fs.fileByURL(srv.URL + "/files/big.mp3")
	require.NotNil(t, rec)
	require.Equal(t, store.FileFailed, rec.Status)
	require.Contains(t, rec.ErrorMessage, "File too large")
}

func TestProcessImportJobUnsupportedFormat(t *testing.T) {
	initTest(t, nil)

	// audio content type, but the derived name fails the extension gate
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/flac")
		w.Write([]byte("flacdata"))
	}))
	defer srv.Close()

	fs := newFakeStore("job-1")
	imp := New(fs, &fakeStorage{}, nil)
	source := srv.URL + "/call.flac"

	err := imp.ProcessImportJob(context.Background(), importRequest("job-1", source))
	require.NoError(t, err)

	rec := fs.fileByURL(source)
	require.NotNil(t, rec)
	require.Equal(t, store.FileFailed, rec.Status)
	require.Contains(t, rec.ErrorMessage, "Unsupported audio format")
}

func TestProcessImportJobRerunReconciles(t *testing.T) {
	initTest(t, nil)

	srv := audioServer(t, map[string][]byte{"a.mp3": []byte("aaa")})
	fs := newFakeStore("job-1")
	imp := New(fs, &fakeStorage{}, completingDispatch(fs))

	req := importRequest("job-1", srv.URL+"/")
	require.NoError(t, imp.ProcessImportJob(context.Background(), req))
	require.NoError(t, imp.ProcessImportJob(context.Background(), req))

	files, _, jobs := fs.snapshot()
	require.Len(t, files, 1, "re-run must reuse the existing file record")
	require.Equal(t, store.JobCompleted, jobs["job-1"].Status)

	// skip note recorded exactly once across both runs
	require.Equal(t, 1, strings.Count(jobs["job-1"].ErrorMessage, skipCallLogNote))
}

func TestNoteSkippedCallLogPreservesExistingError(t *testing.T) {
	initTest(t, nil)

	fs := newFakeStore("job-1")
	fs.jobs["job-1"].ErrorMessage = "earlier problem"
	imp := New(fs, &fakeStorage{}, nil)

	imp.noteSkippedCallLog(context.Background(), "job-1")
	imp.noteSkippedCallLog(context.Background(), "job-1")

	_, _, jobs := fs.snapshot()
	msg := jobs["job-1"].ErrorMessage
	require.Equal(t, "earlier problem; "+skipCallLogNote, msg)
}
