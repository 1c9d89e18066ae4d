// Command kfetch печатает системный отчет запущенного kfetchd
// по HTTP или через файл устройства в FUSE.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "kfetch:", err)
		os.Exit(1)
	}
}
