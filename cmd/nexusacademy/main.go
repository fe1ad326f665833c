// Command nexusacademy はNexus AcademyのAPIサーバー・ワーカー・マイグレーションを起動する。
//
// 使い方:
//
//	nexusacademy [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/EtimGeorge/NexusAcademy-project/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "nexusacademy: %v\n", err)
		os.Exit(1)
	}
}
