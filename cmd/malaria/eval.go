package main

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/andrekda/malaria-classification/annot"
	"github.com/andrekda/malaria-classification/conf"
	"github.com/andrekda/malaria-classification/data"
	"github.com/andrekda/malaria-classification/img"
	"github.com/andrekda/malaria-classification/nnet"
	"github.com/andrekda/malaria-classification/stats"
)

func evalCommand() *cobra.Command {
	var ckPath string
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "evaluate a saved checkpoint on the held-out test split",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := conf.Load(cfgFile)
			if err != nil {
				return err
			}
			return runEval(s, ckPath)
		},
	}
	cmd.Flags().StringVar(&ckPath, "checkpoint", "model.gob", "checkpoint file")
	return cmd
}

func runEval(s *conf.Settings, ckPath string) error {
	ck, err := nnet.LoadCheckpoint(ckPath)
	if err != nil {
		return err
	}
	net, err := nnet.FromState(ck.Net)
	if err != nil {
		return err
	}
	// the checkpoint's vocabulary defines the class indexes
	labels := annot.NewLabelIndexFromNames(ck.Classes)

	entries, err := annot.Load(s.AnnotationFile)
	if err != nil {
		return err
	}
	recs := annot.Flatten(entries)
	for _, r := range recs {
		if _, ok := labels.Index(r.Label); !ok {
			return fmt.Errorf("label %q not in checkpoint vocabulary %v", r.Label, ck.Classes)
		}
	}

	// the same seed and ratios reproduce the training run's test membership
	_, _, test, err := data.Split(recs, s.TrainRatio, s.ValRatio, s.Seed)
	if err != nil {
		return err
	}
	if len(test) == 0 {
		return fmt.Errorf("empty test split")
	}

	c := img.Config{TargetSize: ck.Size, Mean: ck.Mean, StdDev: ck.StdDev}
	trans := img.NewTransformer(img.EvalTrans, c, rand.New(rand.NewSource(s.Seed)))
	pipe := img.NewPipeline(img.NewLoader(s.ImageDir), trans, labels)
	testSet := data.NewDataset(test, pipe, s.BatchSize, data.NewUniformSampler(len(test), false, 0))

	loss, acc, truth, pred, err := nnet.Evaluate(net, testSet)
	if err != nil {
		return err
	}
	fmt.Printf("checkpoint %s  test: loss =%7.4f  accuracy =%6.2f%%\n", ck.RunID, loss, acc*100)
	matrix := stats.Collect(labels.Len(), truth, pred)
	fmt.Print(matrix.Report(labels.Names()))
	return nil
}
