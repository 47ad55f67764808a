// Package conf loads the training run configuration from defaults, an
// optional YAML file and CLI overrides.
package conf

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// Settings is the full configuration surface of a training run.
type Settings struct {
	AnnotationFile string `mapstructure:"annotation_file"`
	ImageDir       string `mapstructure:"image_dir"`
	OutputDir      string `mapstructure:"output_dir"`

	TrainRatio float64 `mapstructure:"train_ratio"`
	ValRatio   float64 `mapstructure:"val_ratio"`
	Seed       int64   `mapstructure:"seed"`

	BatchSize     int     `mapstructure:"batch_size"`
	NumEpochs     int     `mapstructure:"num_epochs"`
	LearningRate  float64 `mapstructure:"learning_rate"`
	LRPatience    int     `mapstructure:"lr_patience"`
	LRDecayFactor float64 `mapstructure:"lr_decay_factor"`
	WeightDecay   float64 `mapstructure:"weight_decay"`
	HiddenUnits   int     `mapstructure:"hidden_units"`
	LogEvery      int     `mapstructure:"log_every"`

	CropTargetSize int     `mapstructure:"crop_target_size"`
	Augment        Augment `mapstructure:"augment"`
	// normalisation constants; estimated from the training split when zero
	Mean   []float64 `mapstructure:"mean"`
	StdDev []float64 `mapstructure:"std_dev"`
}

// Augment holds the randomised transform parameters for the training split.
type Augment struct {
	ScaleMin   float64 `mapstructure:"scale_min"`
	ScaleMax   float64 `mapstructure:"scale_max"`
	FlipProb   float64 `mapstructure:"flip_prob"`
	MaxRotate  float64 `mapstructure:"max_rotate"`
	Brightness float64 `mapstructure:"brightness"`
	Contrast   float64 `mapstructure:"contrast"`
	Saturation float64 `mapstructure:"saturation"`
}

// Load reads settings from the given config file, or from an optional
// ./trainer.yml when path is empty. Defaults apply to any missing key.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("trainer")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	s := new(Settings)
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate rejects settings which would abort the run later anyway.
func (s *Settings) Validate() error {
	switch {
	case s.TrainRatio < 0 || s.ValRatio < 0 || s.TrainRatio+s.ValRatio > 1:
		return fmt.Errorf("invalid split ratios train=%v val=%v", s.TrainRatio, s.ValRatio)
	case s.BatchSize < 0:
		return fmt.Errorf("invalid batch_size %d", s.BatchSize)
	case s.NumEpochs < 1:
		return fmt.Errorf("invalid num_epochs %d", s.NumEpochs)
	case s.LearningRate <= 0:
		return fmt.Errorf("invalid learning_rate %v", s.LearningRate)
	case s.LRDecayFactor <= 0 || s.LRDecayFactor >= 1:
		return fmt.Errorf("invalid lr_decay_factor %v", s.LRDecayFactor)
	case s.CropTargetSize < 4:
		return fmt.Errorf("invalid crop_target_size %d", s.CropTargetSize)
	case s.Augment.ScaleMin <= 0 || s.Augment.ScaleMax > 1 || s.Augment.ScaleMin > s.Augment.ScaleMax:
		return fmt.Errorf("invalid augment scale range [%v, %v]", s.Augment.ScaleMin, s.Augment.ScaleMax)
	case s.Augment.FlipProb < 0 || s.Augment.FlipProb > 1:
		return fmt.Errorf("invalid augment flip_prob %v", s.Augment.FlipProb)
	case len(s.Mean) != 0 && len(s.Mean) != 3, len(s.StdDev) != 0 && len(s.StdDev) != 3:
		return fmt.Errorf("mean and std_dev must have 3 channels")
	}
	return nil
}

// Map flattens the settings for the run report.
func (s *Settings) Map() map[string]interface{} {
	return map[string]interface{}{
		"annotation_file":  s.AnnotationFile,
		"image_dir":        s.ImageDir,
		"train_ratio":      s.TrainRatio,
		"val_ratio":        s.ValRatio,
		"seed":             s.Seed,
		"batch_size":       s.BatchSize,
		"num_epochs":       s.NumEpochs,
		"learning_rate":    s.LearningRate,
		"lr_patience":      s.LRPatience,
		"lr_decay_factor":  s.LRDecayFactor,
		"weight_decay":     s.WeightDecay,
		"hidden_units":     s.HiddenUnits,
		"crop_target_size": s.CropTargetSize,
	}
}
