// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package testgen

import "github.com/tmc/langchaingo/prompts"

// Prompt templates use f-string placeholders. Solidity source is passed as
// a value, so its braces never reach the template parser.

const referencePromptTemplate = `Based on the test function ([reference function test code]) which tests the function code example ([reference function code example]), generate a corresponding test function for the ([function to be tested]) function within the ([contract code to be tested]) contract. This function is for use within the Foundry framework for writing smart contracts.

---

[reference function test code]: {reference_function_test_code}
[reference function code example]: {reference_function_code_example}
[contract code to be tested]: {contract_code}
[function code to be tested]: {function_code}

---

Your output MUST be a single valid Solidity function, with the setup and assertions necessary to test the function. Do NOT wrap the function in a markdown code block.
REMEMBER, do NOT include a description of the function or any other text, only the code.
REMEMBER, you MUST only generate a single function, not a full test contract.
`

const zeroShotPromptTemplate = `Generate a corresponding test function for the ([function to be tested]) function within the ([contract code to be tested]) contract. This function is for use within the Foundry framework for writing smart contracts.

---

[contract code to be tested]: {contract_code}
[function code to be tested]: {function_code}

---

Your output MUST be a single valid Solidity function, with the setup and assertions necessary to test the function. Do NOT wrap the function in a markdown code block.
REMEMBER, do NOT include a description of the function or any other text, only the code.
REMEMBER, you MUST only generate a single function, not a full test contract.
`

const repairPromptTemplate = `I wrote the Solidity test function ([test function code]) to run on the Foundry framework. When this code is compiled with Foundry, I get this error ([compiler error]).
This test is for the function ([function code to be tested]) within the contract ([contract code to be tested]).

Your task is to understand the test I provided, fix the test code, and correct the error within the test. You MUST modify the test function code while maintaining its functionality, but do NOT add other unrelated code.

If the error is due to a non-existent variable, find feasible methods to reimplement it, or if it is not implementable, delete this line.

---

[test function code]: {test_function}
[compiler error]: {error_info}
[function code to be tested]: {function_code}
[contract code to be tested]: {contract_code}

---

Your output MUST be a single valid Solidity function, with the setup and assertions necessary to test the function. Do NOT wrap the function in a markdown code block.
REMEMBER, do NOT include a description of the function or any other text, only the code.
REMEMBER, you MUST only generate a single test function, not a full test contract.
`

const descriptionPromptTemplate = "Based on the following function written in the Solidity language, summarize its behavior in plain text, without giving a line-by-line description and without making any reference to the code.\n\n```solidity\n{function_code}\n```\n"

var (
	referencePrompt = prompts.PromptTemplate{
		Template:       referencePromptTemplate,
		InputVariables: []string{"reference_function_test_code", "reference_function_code_example", "contract_code", "function_code"},
		TemplateFormat: prompts.TemplateFormatFString,
	}

	zeroShotPrompt = prompts.PromptTemplate{
		Template:       zeroShotPromptTemplate,
		InputVariables: []string{"contract_code", "function_code"},
		TemplateFormat: prompts.TemplateFormatFString,
	}

	repairPrompt = prompts.PromptTemplate{
		Template:       repairPromptTemplate,
		InputVariables: []string{"test_function", "error_info", "function_code", "contract_code"},
		TemplateFormat: prompts.TemplateFormatFString,
	}

	descriptionPrompt = prompts.PromptTemplate{
		Template:       descriptionPromptTemplate,
		InputVariables: []string{"function_code"},
		TemplateFormat: prompts.TemplateFormatFString,
	}
)
