// Точка входа каталога моделей — сервиса хранения BIM/CAD/3D моделей.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
