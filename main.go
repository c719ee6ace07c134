/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package main

import (
	"github.com/josephgoksu/TodoBuilder/cmd"
	"github.com/josephgoksu/TodoBuilder/internal/logger"
)

func main() {
	defer logger.HandlePanic()
	cmd.Execute()
}
