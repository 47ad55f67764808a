package nnet

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/andrekda/malaria-classification/data"
	"github.com/andrekda/malaria-classification/stats"
)

// Training statistics for one epoch.
type EpochStats struct {
	Epoch     int
	TrainLoss float64
	TrainAcc  float64
	ValLoss   float64
	ValAcc    float64
	LR        float64
	Elapsed   time.Duration
}

// TrainConfig holds the training loop settings.
type TrainConfig struct {
	Epochs       int
	LearningRate float64
	WeightDecay  float64
	LRPatience   int
	LRFactor     float64
	LogEvery     int
}

// Tester is called after each epoch with the collected stats; returning true
// stops the run early.
type Tester interface {
	Test(net *Network, s EpochStats) bool
}

// Logger is a Tester which prints per-epoch progress, including a smoothed
// validation loss.
type Logger struct {
	Every  int
	valAvg stats.EMA
}

func (l *Logger) Test(net *Network, s EpochStats) bool {
	smoothed := l.valAvg.Add(s.ValLoss, 10)
	l.valAvg = stats.EMA(smoothed)
	if l.Every <= 1 || s.Epoch%l.Every == 0 {
		fmt.Printf("epoch %3d:  loss =%7.4f  train =%6.2f%%  valid =%6.2f%% (loss %.4f avg %.4f)  lr =%.2g  %s\n",
			s.Epoch, s.TrainLoss, s.TrainAcc*100, s.ValAcc*100, s.ValLoss, smoothed, s.LR,
			s.Elapsed.Round(10*time.Millisecond))
	}
	return false
}

// Train runs the epoch loop: a TRAIN phase with parameter updates, an EVAL
// phase on the validation set with the parameters frozen, then a scheduler
// step on the validation loss. Any failure inside a batch aborts the run.
func Train(net *Network, trainSet, valSet *data.Dataset, conf TrainConfig, tester Tester) ([]EpochStats, error) {
	sched := NewScheduler(conf.LearningRate, conf.LRFactor, conf.LRPatience)
	history := make([]EpochStats, 0, conf.Epochs)
	start := time.Now()
	for epoch := 1; epoch <= conf.Epochs; epoch++ {
		eta := sched.LR()
		loss, acc, err := TrainEpoch(net, trainSet, eta, conf.WeightDecay)
		if err != nil {
			return history, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		s := EpochStats{Epoch: epoch, TrainLoss: loss, TrainAcc: acc, LR: eta}
		monitored := loss
		if valSet != nil && valSet.Samples > 0 {
			s.ValLoss, s.ValAcc, _, _, err = Evaluate(net, valSet)
			if err != nil {
				return history, fmt.Errorf("epoch %d: %w", epoch, err)
			}
			monitored = s.ValLoss
		}
		sched.Step(monitored)
		s.Elapsed = time.Since(start)
		history = append(history, s)
		if tester != nil && tester.Test(net, s) {
			break
		}
	}
	return history, nil
}

// TrainEpoch performs one full pass over the training loader with gradients
// enabled, returning the sample-weighted mean loss and the accuracy.
func TrainEpoch(net *Network, dset *data.Dataset, eta, lambda float64) (loss, acc float64, err error) {
	net.SetTraining(true)
	defer net.SetTraining(false)
	dset.NextEpoch()
	var lossSum, correct, seen float64
	for batch := 0; batch < dset.Batches; batch++ {
		x, y, n, err := dset.NextBatch()
		if err != nil {
			return 0, 0, err
		}
		X := Tensor(x, n, len(x)/n)
		probs := Softmax(net.Fprop(X))
		batchLoss, grad := LossGrad(probs, y)
		net.Bprop(grad)
		net.Update(eta, lambda)
		lossSum += batchLoss * float64(n)
		correct += countCorrect(probs, y)
		seen += float64(n)
	}
	return lossSum / seen, correct / seen, nil
}

// Evaluate performs one forward-only pass, returning mean loss, accuracy and
// the (true, predicted) pairs for reporting.
func Evaluate(net *Network, dset *data.Dataset) (loss, acc float64, truth, pred []int, err error) {
	dset.NextEpoch()
	var lossSum, correct, seen float64
	for batch := 0; batch < dset.Batches; batch++ {
		x, y, n, err := dset.NextBatch()
		if err != nil {
			return 0, 0, nil, nil, err
		}
		X := Tensor(x, n, len(x)/n)
		probs := Softmax(net.Fprop(X))
		batchLoss, _ := LossGrad(probs, y)
		lossSum += batchLoss * float64(n)
		correct += countCorrect(probs, y)
		seen += float64(n)
		for i := 0; i < n; i++ {
			truth = append(truth, y[i])
			pred = append(pred, argmax(probs.RawRowView(i)))
		}
	}
	return lossSum / seen, correct / seen, truth, pred, nil
}

func countCorrect(probs *mat.Dense, labels []int) float64 {
	n := 0.0
	for i, label := range labels {
		if argmax(probs.RawRowView(i)) == label {
			n++
		}
	}
	return n
}
