/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"os"

	"cardcomposer/internal/version"
)

func usage() {
	fmt.Println("Card Composer")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  cardcomposer version|-v|--version              Show version")
	fmt.Println("  cardcomposer templates                          List the template catalog")
	fmt.Println("  cardcomposer thumbs [-w N] [-h N] [-out dir]    Write picker thumbnails for every template")
	fmt.Println("  cardcomposer render -template <id> [flags]      Render a card with the default text")
	fmt.Println("  cardcomposer compose <recipe.yaml> [flags]      Apply an edit recipe and export the card")
	fmt.Println("  cardcomposer config [save]                      Print the effective config, or save it")
	fmt.Println()
	fmt.Println("Run a command with -help for its flags.")
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:]))
}
