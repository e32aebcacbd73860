package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anime-shed/blur-inspector-go/internal/blur"
	apperrors "github.com/anime-shed/blur-inspector-go/internal/errors"
	"github.com/anime-shed/blur-inspector-go/internal/observer"
	"github.com/anime-shed/blur-inspector-go/internal/repository"
	"github.com/anime-shed/blur-inspector-go/internal/worker"
	"github.com/anime-shed/blur-inspector-go/pkg/models"
)

// mapSource serves images from memory keyed by location
type mapSource map[string][]byte

func (m mapSource) Fetch(ctx context.Context, location string) ([]byte, error) {
	if strings.Contains(location, "slow") {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	data, ok := m[location]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", location, fs.ErrNotExist)
	}
	return data, nil
}

type recordingObserver struct {
	mu     sync.Mutex
	events []observer.ClassificationEvent
}

func (r *recordingObserver) OnEvent(ctx context.Context, event observer.ClassificationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingObserver) GetObserverName() string { return "recording" }

func (r *recordingObserver) types() map[observer.EventType]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[observer.EventType]int{}
	for _, e := range r.events {
		out[e.EventType]++
	}
	return out
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func checkerboard(n, cell int) image.Image {
	img := image.NewGray(image.Rect(0, 0, n, n))
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func flat(n int) image.Image {
	img := image.NewGray(image.Rect(0, 0, n, n))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	return img
}

type fixture struct {
	svc       *BlurDetectionService
	analyses  *repository.MemoryRepository
	publisher *observer.EventPublisher
	recorder  *recordingObserver
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	src := mapSource{
		"https://img.test/sharp.png": encodePNG(t, checkerboard(64, 1)),
		"https://img.test/flat.png":  encodePNG(t, flat(64)),
		"https://img.test/tiny.png":  encodePNG(t, flat(2)),
		"https://img.test/junk.png":  []byte("not an image"),
	}

	pool := worker.NewWorkerPool(2)
	pool.Start()
	t.Cleanup(pool.Close)

	publisher := observer.NewEventPublisher()
	recorder := &recordingObserver{}
	publisher.Subscribe(recorder)

	analyses := repository.NewMemoryRepository(time.Hour)
	svc := NewBlurDetectionService(
		repository.NewSourceImageRepository(src, nil),
		analyses,
		nil,
		pool,
		publisher,
		cfg,
	)
	return &fixture{svc: svc, analyses: analyses, publisher: publisher, recorder: recorder}
}

func TestClassifyLocation_Sharp(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	resp, err := f.svc.ClassifyLocation(ctx, models.ClassifyRequest{URL: "https://img.test/sharp.png"})
	require.NoError(t, err)

	assert.False(t, resp.Classification.IsBlurry)
	assert.Equal(t, blur.Sharp, resp.Classification.Verdict)
	assert.Equal(t, blur.DefaultThreshold, resp.Classification.ThresholdUsed)
	assert.Equal(t, "png", resp.Format)
	assert.Equal(t, "laplacian4", resp.Kernel)
	assert.Equal(t, 64, resp.OriginalWidth)
	assert.NotEmpty(t, resp.ID)
	assert.True(t, strings.HasPrefix(resp.Fingerprint, "d:"))
	assert.Equal(t, "Blur level is low.", resp.Message)

	rec, err := f.svc.GetAnalysis(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.Classification.Score, rec.Score)

	history, err := f.svc.History(ctx, resp.Fingerprint, 10)
	require.NoError(t, err)
	require.Len(t, history.Records, 1)
	assert.Equal(t, resp.ID, history.Records[0].ID)

	f.publisher.Flush()
	types := f.recorder.types()
	assert.Equal(t, 1, types[observer.ClassificationStarted])
	assert.Equal(t, 1, types[observer.ImageFetched])
	assert.Equal(t, 1, types[observer.ClassificationCompleted])
}

func TestClassifyLocation_FlatIsBlurry(t *testing.T) {
	f := newFixture(t, Config{})

	resp, err := f.svc.ClassifyLocation(context.Background(), models.ClassifyRequest{URL: "https://img.test/flat.png"})
	require.NoError(t, err)
	assert.True(t, resp.Classification.IsBlurry)
	assert.Equal(t, 0.0, resp.Classification.Score)
	assert.Equal(t, "Blur level is too high.", resp.Message)
	require.NotEmpty(t, resp.Issues)
	assert.Equal(t, "flat_image", resp.Issues[0].Type)
}

func TestClassifyLocation_Overrides(t *testing.T) {
	f := newFixture(t, Config{})
	threshold := 1e9
	maxDim := 16

	resp, err := f.svc.ClassifyLocation(context.Background(), models.ClassifyRequest{
		URL: "https://img.test/sharp.png",
		ClassifyOptions: models.ClassifyOptions{
			Threshold:    &threshold,
			Kernel:       "laplacian8",
			MaxDimension: &maxDim,
		},
	})
	require.NoError(t, err)
	assert.True(t, resp.Classification.IsBlurry)
	assert.Equal(t, threshold, resp.Classification.ThresholdUsed)
	assert.Equal(t, "laplacian8", resp.Kernel)
	assert.Equal(t, 16, resp.Classification.Width)
	assert.Equal(t, 64, resp.OriginalWidth)
}

func TestClassifyLocation_Preset(t *testing.T) {
	f := newFixture(t, Config{})
	threshold := 7.0

	resp, err := f.svc.ClassifyLocation(context.Background(), models.ClassifyRequest{
		URL:             "https://img.test/sharp.png",
		ClassifyOptions: models.ClassifyOptions{Preset: "strict"},
	})
	require.NoError(t, err)
	assert.Equal(t, 300.0, resp.Classification.ThresholdUsed)

	// explicit threshold wins over the preset
	resp, err = f.svc.ClassifyLocation(context.Background(), models.ClassifyRequest{
		URL:             "https://img.test/sharp.png",
		ClassifyOptions: models.ClassifyOptions{Preset: "strict", Threshold: &threshold},
	})
	require.NoError(t, err)
	assert.Equal(t, threshold, resp.Classification.ThresholdUsed)
}

func TestClassifyLocation_Errors(t *testing.T) {
	negative := -1.0
	negativeDim := -5
	oneDim, twoDim := 1, 2

	testCases := []struct {
		name     string
		req      models.ClassifyRequest
		wantType apperrors.ErrorType
	}{
		{"empty url", models.ClassifyRequest{URL: ""}, apperrors.ErrorTypeValidation},
		{"scheme not allowed", models.ClassifyRequest{URL: "ftp://img.test/a.png"}, apperrors.ErrorTypeValidation},
		{"negative threshold", models.ClassifyRequest{URL: "https://img.test/sharp.png", ClassifyOptions: models.ClassifyOptions{Threshold: &negative}}, apperrors.ErrorTypeValidation},
		{"unknown preset", models.ClassifyRequest{URL: "https://img.test/sharp.png", ClassifyOptions: models.ClassifyOptions{Preset: "paranoid"}}, apperrors.ErrorTypeValidation},
		{"unknown kernel", models.ClassifyRequest{URL: "https://img.test/sharp.png", ClassifyOptions: models.ClassifyOptions{Kernel: "sobel"}}, apperrors.ErrorTypeValidation},
		{"negative max dimension", models.ClassifyRequest{URL: "https://img.test/sharp.png", ClassifyOptions: models.ClassifyOptions{MaxDimension: &negativeDim}}, apperrors.ErrorTypeValidation},
		{"max dimension 1", models.ClassifyRequest{URL: "https://img.test/sharp.png", ClassifyOptions: models.ClassifyOptions{MaxDimension: &oneDim}}, apperrors.ErrorTypeValidation},
		{"max dimension 2", models.ClassifyRequest{URL: "https://img.test/sharp.png", ClassifyOptions: models.ClassifyOptions{MaxDimension: &twoDim}}, apperrors.ErrorTypeValidation},
		{"missing image", models.ClassifyRequest{URL: "https://img.test/missing.png"}, apperrors.ErrorTypeNotFound},
		{"not an image", models.ClassifyRequest{URL: "https://img.test/junk.png"}, apperrors.ErrorTypeUnsupportedMedia},
		{"too small", models.ClassifyRequest{URL: "https://img.test/tiny.png"}, apperrors.ErrorTypeProcessing},
	}

	f := newFixture(t, Config{})
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.ClassifyLocation(context.Background(), tc.req)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tc.wantType), "got %v", err)
		})
	}

	f.publisher.Flush()
	assert.Equal(t, len(testCases), f.recorder.types()[observer.ClassificationFailed])
}

func TestClassifyLocation_MaxDimensionBounds(t *testing.T) {
	f := newFixture(t, Config{})

	for _, dim := range []int{0, blur.MinDimension, 16} {
		d := dim
		resp, err := f.svc.ClassifyLocation(context.Background(), models.ClassifyRequest{
			URL:             "https://img.test/sharp.png",
			ClassifyOptions: models.ClassifyOptions{MaxDimension: &d},
		})
		require.NoError(t, err, "max_dimension %d", dim)
		assert.True(t, resp.Classification.Score >= 0)
	}
}

func TestClassifyLocation_Timeout(t *testing.T) {
	f := newFixture(t, Config{AnalysisTimeout: 20 * time.Millisecond})

	_, err := f.svc.ClassifyLocation(context.Background(), models.ClassifyRequest{URL: "https://img.test/slow.png"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTimeout), "got %v", err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClassifyBytes(t *testing.T) {
	f := newFixture(t, Config{Options: blur.LenientOptions()})

	resp, err := f.svc.ClassifyBytes(context.Background(), encodePNG(t, checkerboard(32, 2)), models.ClassifyOptions{})
	require.NoError(t, err)
	assert.Equal(t, UploadSource, resp.Source)
	assert.Equal(t, 3.0, resp.Classification.ThresholdUsed)
	assert.False(t, resp.Classification.IsBlurry)

	_, err = f.svc.ClassifyBytes(context.Background(), nil, models.ClassifyOptions{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnsupportedMedia))
}

func TestClassifyBatch(t *testing.T) {
	f := newFixture(t, Config{})

	items := f.svc.ClassifyBatch(context.Background(), []models.ClassifyRequest{
		{URL: "https://img.test/sharp.png"},
		{URL: "https://img.test/junk.png"},
		{URL: "https://img.test/flat.png"},
	})
	require.Len(t, items, 3)

	for i, item := range items {
		assert.Equal(t, i, item.Index)
	}
	require.NotNil(t, items[0].Result)
	assert.False(t, items[0].Result.Classification.IsBlurry)
	assert.Nil(t, items[1].Result)
	require.NotNil(t, items[1].Error)
	assert.Equal(t, string(apperrors.ErrorTypeUnsupportedMedia), items[1].Error.Error)
	require.NotNil(t, items[2].Result)
	assert.True(t, items[2].Result.Classification.IsBlurry)
}

func TestGetAnalysis_Errors(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	_, err := f.svc.GetAnalysis(ctx, "not-a-uuid")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = f.svc.GetAnalysis(ctx, "3b241101-e2bb-4255-8caf-4136c566a962")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	_, err = f.svc.History(ctx, "bogus", 5)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	empty, err := f.svc.History(ctx, "d:0000000000000000", 5)
	require.NoError(t, err)
	assert.Empty(t, empty.Records)
}

func TestWithoutHistory(t *testing.T) {
	svc := NewBlurDetectionService(
		repository.NewSourceImageRepository(mapSource{"https://img.test/a.png": encodePNG(t, checkerboard(16, 1))}, nil),
		nil, nil, nil, nil, Config{},
	)

	resp, err := svc.ClassifyLocation(context.Background(), models.ClassifyRequest{URL: "https://img.test/a.png"})
	require.NoError(t, err)

	_, err = svc.GetAnalysis(context.Background(), resp.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	items := svc.ClassifyBatch(context.Background(), []models.ClassifyRequest{{URL: "https://img.test/a.png"}})
	require.NotNil(t, items[0].Result)
}

func TestToErrorResponse(t *testing.T) {
	resp := ToErrorResponse(apperrors.NewNotFoundError("analysis not found", nil))
	assert.Equal(t, &models.ErrorResponse{Error: "not_found", Message: "analysis not found"}, resp)

	resp = ToErrorResponse(errors.New("plain"))
	assert.Equal(t, "internal", resp.Error)
}
