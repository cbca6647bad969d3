package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// Рендер configs/values_<env>.yaml: база values_base.yaml плюс оверлей
// values_<env>.overlay.yaml. Секреты в файлы не попадают, они приходят
// через окружение на старте процесса.
func render(env string) (string, error) {
	base := viper.New()
	base.SetConfigName("values_base")
	base.SetConfigType("yaml")
	base.AddConfigPath("configs")
	if err := base.ReadInConfig(); err != nil {
		return "", errors.Wrap(err, "read base config")
	}

	overlay := viper.New()
	overlay.SetConfigName("values_" + env + ".overlay")
	overlay.SetConfigType("yaml")
	overlay.AddConfigPath("configs")
	if err := overlay.ReadInConfig(); err == nil {
		for key, value := range overlay.AllSettings() {
			base.Set(key, value)
		}
	}

	bs, err := yaml.Marshal(base.AllSettings())
	if err != nil {
		return "", errors.Wrap(err, "marshal merged config")
	}

	out := fmt.Sprintf("configs/values_%s.yaml", env)
	if err := os.WriteFile(out, bs, 0o644); err != nil {
		return "", errors.Wrap(err, "write rendered config")
	}
	return out, nil
}

func main() {
	env := flag.String("env", "local", "environment name")
	flag.Parse()

	out, err := render(*env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configgen: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("rendered", out)
}
