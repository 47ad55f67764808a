package main

import (
	"fmt"
	"image"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/andrekda/malaria-classification/annot"
	"github.com/andrekda/malaria-classification/conf"
	"github.com/andrekda/malaria-classification/data"
	"github.com/andrekda/malaria-classification/img"
	"github.com/andrekda/malaria-classification/nnet"
	"github.com/andrekda/malaria-classification/stats"
)

func trainCommand() *cobra.Command {
	var epochs, batch int
	var lr float64
	var seed int64
	cmd := &cobra.Command{
		Use:   "train",
		Short: "train the stage classifier and write a run report",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := conf.Load(cfgFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("epochs") {
				s.NumEpochs = epochs
			}
			if cmd.Flags().Changed("batch") {
				s.BatchSize = batch
			}
			if cmd.Flags().Changed("lr") {
				s.LearningRate = lr
			}
			if cmd.Flags().Changed("seed") {
				s.Seed = seed
			}
			return runTraining(s)
		},
	}
	cmd.Flags().IntVar(&epochs, "epochs", 0, "override num_epochs")
	cmd.Flags().IntVar(&batch, "batch", 0, "override batch_size")
	cmd.Flags().Float64Var(&lr, "lr", 0, "override learning_rate")
	cmd.Flags().Int64Var(&seed, "seed", 0, "override seed")
	return cmd
}

func runTraining(s *conf.Settings) error {
	started := time.Now()
	runID := uuid.NewString()[:8]
	runDir := filepath.Join(s.OutputDir, "run-"+runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return err
	}
	fmt.Println("run", runID, "->", runDir)

	entries, err := annot.Load(s.AnnotationFile)
	if err != nil {
		return err
	}
	recs := annot.Flatten(entries)
	labels := annot.NewLabelIndex(recs)
	fmt.Printf("loaded %d annotated parasites in %d images, %d classes %v\n",
		len(recs), len(entries), labels.Len(), labels.Names())

	train, val, test, err := data.Split(recs, s.TrainRatio, s.ValRatio, s.Seed)
	if err != nil {
		return err
	}
	fmt.Printf("split: %d train / %d val / %d test\n", len(train), len(val), len(test))
	if len(train) == 0 {
		return fmt.Errorf("empty training split")
	}

	loader := img.NewLoader(s.ImageDir)
	mean, std, err := normStats(s, loader, train)
	if err != nil {
		return err
	}
	fmt.Printf("normalisation: mean=%.3f stddev=%.3f\n", mean, std)

	trainTrans, evalTrans := transformers(s, mean, std)
	trainPipe := img.NewPipeline(loader, trainTrans, labels)
	evalPipe := img.NewPipeline(loader, evalTrans, labels)

	trainSet := data.NewDataset(train, trainPipe, s.BatchSize,
		data.NewWeightedSampler(data.Weights(train), s.Seed+1))
	valSet := data.NewDataset(val, evalPipe, s.BatchSize,
		data.NewUniformSampler(len(val), false, 0))
	testSet := data.NewDataset(test, evalPipe, s.BatchSize,
		data.NewUniformSampler(len(test), false, 0))

	net := nnet.New(trainPipe.Features(), s.HiddenUnits, labels.Len())
	net.InitWeights(rand.New(rand.NewSource(s.Seed + 2)))

	history, err := nnet.Train(net, trainSet, valSet, nnet.TrainConfig{
		Epochs:       s.NumEpochs,
		LearningRate: s.LearningRate,
		WeightDecay:  s.WeightDecay,
		LRPatience:   s.LRPatience,
		LRFactor:     s.LRDecayFactor,
	}, &nnet.Logger{Every: s.LogEvery})
	if err != nil {
		return err
	}

	if len(test) == 0 {
		return fmt.Errorf("empty test split, nothing to report")
	}
	loss, acc, truth, pred, err := nnet.Evaluate(net, testSet)
	if err != nil {
		return err
	}
	matrix := stats.Collect(labels.Len(), truth, pred)
	fmt.Printf("test: loss =%7.4f  accuracy =%6.2f%%\n", loss, acc*100)
	fmt.Print(matrix.Report(labels.Names()))

	return writeArtifacts(s, runDir, runID, started, net, evalPipe, test, labels, matrix, history, mean, std)
}

// estimate per-channel stats from the training split unless configured
func normStats(s *conf.Settings, loader *img.Loader, train []annot.Record) (mean, std [3]float32, err error) {
	if len(s.Mean) == 3 && len(s.StdDev) == 3 {
		for ch := 0; ch < 3; ch++ {
			mean[ch] = float32(s.Mean[ch])
			std[ch] = float32(s.StdDev[ch])
		}
		return mean, std, nil
	}
	return img.SampleStats(loader, train, s.CropTargetSize, 512, s.Seed)
}

func transformers(s *conf.Settings, mean, std [3]float32) (train, eval *img.Transformer) {
	c := img.Config{
		TargetSize: s.CropTargetSize,
		ScaleMin:   s.Augment.ScaleMin,
		ScaleMax:   s.Augment.ScaleMax,
		FlipProb:   s.Augment.FlipProb,
		MaxRotate:  s.Augment.MaxRotate,
		Brightness: s.Augment.Brightness,
		Contrast:   s.Augment.Contrast,
		Saturation: s.Augment.Saturation,
		Mean:       mean,
		StdDev:     std,
	}
	train = img.NewTransformer(img.TrainTrans, c, rand.New(rand.NewSource(s.Seed+3)))
	eval = img.NewTransformer(img.EvalTrans, c, rand.New(rand.NewSource(s.Seed+4)))
	return train, eval
}

func writeArtifacts(s *conf.Settings, runDir, runID string, started time.Time, net *nnet.Network,
	evalPipe *img.Pipeline, test []annot.Record, labels *annot.LabelIndex, matrix *stats.Confusion,
	history []nnet.EpochStats, mean, std [3]float32) error {

	ck := &nnet.Checkpoint{
		RunID:   runID,
		Classes: labels.Names(),
		Size:    s.CropTargetSize,
		Mean:    mean,
		StdDev:  std,
		Net:     net.State(),
	}
	if err := ck.Save(filepath.Join(runDir, "model.gob")); err != nil {
		return err
	}

	var trainLoss, valLoss, trainAcc, valAcc []float64
	for _, e := range history {
		trainLoss = append(trainLoss, e.TrainLoss)
		valLoss = append(valLoss, e.ValLoss)
		trainAcc = append(trainAcc, e.TrainAcc)
		valAcc = append(valAcc, e.ValAcc)
	}
	if err := stats.SaveCurves(filepath.Join(runDir, "loss.png"), "loss", "cross entropy",
		stats.Curve{Name: "train", Values: trainLoss},
		stats.Curve{Name: "valid", Values: valLoss}); err != nil {
		return err
	}
	if err := stats.SaveCurves(filepath.Join(runDir, "accuracy.png"), "accuracy", "fraction correct",
		stats.Curve{Name: "train", Values: trainAcc},
		stats.Curve{Name: "valid", Values: valAcc}); err != nil {
		return err
	}
	if err := stats.SaveConfusionPlot(filepath.Join(runDir, "confusion.png"), matrix, labels.Names()); err != nil {
		return err
	}
	saliency, err := saliencyOverlay(net, evalPipe, test[0], s.CropTargetSize)
	if err != nil {
		return err
	}
	if err := img.SavePNG(filepath.Join(runDir, "saliency.png"), saliency); err != nil {
		return err
	}

	report := &stats.RunReport{
		RunID:        runID,
		Started:      started,
		Elapsed:      time.Since(started).Round(time.Second),
		Config:       s.Map(),
		Classes:      labels.Names(),
		Matrix:       matrix,
		TextBlock:    matrix.Report(labels.Names()),
		CurvePlots:   []string{"loss.png", "accuracy.png"},
		ConfusionImg: "confusion.png",
		SaliencyImg:  "saliency.png",
	}
	if err := report.WriteHTML(filepath.Join(runDir, "report.html")); err != nil {
		return err
	}
	fmt.Println("artifacts written to", runDir)
	return nil
}

// render the input-gradient saliency for one held-out example
func saliencyOverlay(net *nnet.Network, pipe *img.Pipeline, rec annot.Record, size int) (*image.NRGBA, error) {
	pix, _, err := pipe.Example(rec, 0)
	if err != nil {
		return nil, err
	}
	X := nnet.Tensor(pix, 1, len(pix))
	class := net.Predict(X)[0]
	grad := net.InputGradient(pix, class)

	src, err := pipe.Loader().Load(rec.Image)
	if err != nil {
		return nil, err
	}
	crop, err := img.Crop(src, rec.Box)
	if err != nil {
		return nil, err
	}
	return img.SaliencyOverlay(crop, grad, size, 0.5)
}
