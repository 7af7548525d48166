// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/unitgen/services/solidity"
)

var describeCmd = &cobra.Command{
	Use:   "describe <Contract>",
	Short: "Print the model's description of each public function",
	Long: `Shows the text that reference retrieval searches with. Useful for
checking why a function retrieves the examples it does.`,
	Args: cobra.ExactArgs(1),
	RunE: runDescribe,
}

func runDescribe(cmd *cobra.Command, args []string) error {
	contract := args[0]
	if err := solidity.ValidateContractName(contract); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	source, err := readContract(a.project, contract)
	if err != nil {
		return err
	}
	gen, err := a.generator()
	if err != nil {
		return err
	}

	functions := solidity.PublicFunctions(source)
	if len(functions) == 0 {
		a.out.Warning(fmt.Sprintf("%s has no public or external functions", contract))
		return nil
	}
	for _, fn := range functions {
		desc, err := gen.Describe(ctx, fn.Source)
		if err != nil {
			a.out.Error(fmt.Sprintf("%s: %v", fn.Name, err))
			continue
		}
		a.out.Box(fn.Name, desc)
	}
	return nil
}
