// Package batch drives the per-audio-file video generation workflow: discover
// inputs, upload the shared character image once, then for each audio clip
// upload it, create a video job, wait for it, and download the result. Files
// are processed strictly in order; the first failure aborts the rest of the
// run.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fpang/hedra-batch/internal/config"
	"github.com/fpang/hedra-batch/internal/hedra"
)

// Result records the outcome of one audio file's workflow for the run summary.
type Result struct {
	Audio   string // audio file base name
	VideoID string // job ID, empty if creation never happened
	Output  string // downloaded video path, empty unless completed
	Status  string // completed, failed, or timed out
	Elapsed time.Duration
}

// Runner sequences a batch run. One Runner serves one run; its logger and
// client are scoped accordingly.
type Runner struct {
	client *hedra.Client
	cfg    *config.Config
	log    zerolog.Logger
}

// NewRunner creates a Runner around an initialized client.
func NewRunner(client *hedra.Client, cfg *config.Config, logger zerolog.Logger) *Runner {
	return &Runner{client: client, cfg: cfg, log: logger}
}

// Run processes every audio file in inputFolder against the folder's single
// character image. It returns a Result per attempted file; the error is the
// first failure encountered, with all later files left unprocessed.
func (r *Runner) Run(ctx context.Context, inputFolder, outputFolder, prompt string) ([]Result, error) {
	info, err := os.Stat(inputFolder)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("input folder does not exist: %s", inputFolder)
		}
		return nil, fmt.Errorf("access input folder %s: %w", inputFolder, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input path is not a folder: %s", inputFolder)
	}

	if err := os.MkdirAll(outputFolder, 0o755); err != nil {
		return nil, fmt.Errorf("create output folder %s: %w", outputFolder, err)
	}

	imageFile, err := FindImageFile(inputFolder, r.cfg.Files.ImagePattern)
	if err != nil {
		return nil, err
	}
	r.inspectImage(imageFile)

	imageID, err := r.client.UploadAsset(ctx, imageFile)
	if err != nil {
		return nil, err
	}
	r.log.Info().Str("file", filepath.Base(imageFile)).Str("asset_id", imageID).Msg("Uploaded image")

	audioFiles, err := FindAudioFiles(inputFolder, r.cfg.Files.AudioPattern)
	if err != nil {
		return nil, err
	}
	if len(audioFiles) == 0 {
		return nil, fmt.Errorf("no audio files matching %s found in %s", r.cfg.Files.AudioPattern, inputFolder)
	}
	r.log.Info().Int("count", len(audioFiles)).Msg("Found audio files to process")

	var results []Result
	for _, audioFile := range audioFiles {
		res, err := r.ProcessAudioFile(ctx, audioFile, imageID, prompt, outputFolder)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}

	r.log.Info().Msg("Batch processing completed successfully")
	return results, nil
}

// ProcessAudioFile runs upload, create, wait, and download for one audio
// file. The output video takes the audio file's base name with the configured
// video extension. Errors are logged with the audio file's name and returned,
// never swallowed.
func (r *Runner) ProcessAudioFile(ctx context.Context, audioPath, imageID, prompt, outputFolder string) (Result, error) {
	name := filepath.Base(audioPath)
	res := Result{Audio: name, Status: "failed"}
	start := time.Now()

	r.log.Info().Str("file", name).Msg("Processing audio file")

	audioID, err := r.client.UploadAsset(ctx, audioPath)
	if err != nil {
		return r.fail(res, start, err)
	}
	r.log.Info().Str("file", name).Str("asset_id", audioID).Msg("Uploaded audio file")

	videoID, err := r.client.CreateVideo(ctx, imageID, audioID, prompt)
	if err != nil {
		return r.fail(res, start, err)
	}
	res.VideoID = videoID
	r.log.Info().Str("video_id", videoID).Msg("Created video")

	if err := r.client.WaitForVideo(ctx, videoID); err != nil {
		return r.fail(res, start, err)
	}
	r.log.Info().Str("video_id", videoID).Msg("Video generation completed")

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	outputFile := filepath.Join(outputFolder, stem+r.cfg.Files.OutputExt)
	if err := r.client.DownloadVideo(ctx, videoID, outputFile); err != nil {
		return r.fail(res, start, err)
	}

	res.Output = outputFile
	res.Status = hedra.StatusCompleted
	res.Elapsed = time.Since(start)
	r.log.Info().Str("file", name).Msgf("Downloaded video to: %s", outputFile)

	return res, nil
}

// fail finalizes a Result for a failed file and logs the error with enough
// context to diagnose afterwards.
func (r *Runner) fail(res Result, start time.Time, err error) (Result, error) {
	res.Elapsed = time.Since(start)
	if errors.Is(err, hedra.ErrGenerationTimeout) {
		res.Status = "timed out"
	}
	r.log.Error().Err(err).Str("file", res.Audio).Msgf("Error processing %s", res.Audio)
	return res, err
}
