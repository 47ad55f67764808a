package conf

import "github.com/spf13/viper"

func setDefaults(v *viper.Viper) {
	v.SetDefault("annotation_file", "annotations.json")
	v.SetDefault("image_dir", "images")
	v.SetDefault("output_dir", "runs")

	v.SetDefault("train_ratio", 0.8)
	v.SetDefault("val_ratio", 0.15)
	v.SetDefault("seed", 42)

	v.SetDefault("batch_size", 32)
	v.SetDefault("num_epochs", 20)
	v.SetDefault("learning_rate", 0.01)
	v.SetDefault("lr_patience", 2)
	v.SetDefault("lr_decay_factor", 0.5)
	v.SetDefault("weight_decay", 1e-4)
	v.SetDefault("hidden_units", 128)
	v.SetDefault("log_every", 1)

	v.SetDefault("crop_target_size", 64)
	v.SetDefault("augment.scale_min", 0.8)
	v.SetDefault("augment.scale_max", 1.0)
	v.SetDefault("augment.flip_prob", 0.5)
	v.SetDefault("augment.max_rotate", 20)
	v.SetDefault("augment.brightness", 10)
	v.SetDefault("augment.contrast", 10)
	v.SetDefault("augment.saturation", 10)
}
