// Команда retention управляет удалением данных неактивных учётных записей:
// разовый запуск, демон по расписанию и ручная отмена удаления.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
