package llm

import (
	"fmt"
	"os"
	"strings"
)

const codeFence = "```"

// DefaultReceiptPrompt instructs the model to return one CSV row per purchased item.
// It is used as both the system message and the text part of the user message.
const DefaultReceiptPrompt = `Analyze an expense receipt and extract specific information with expert-level accuracy. Identify and extract attributes such as the date, store name, item names, prices per item, and calculate tax per item. Additionally, categorize each item into a predefined category such as Utility, Clothes, Luxury, Rent, Electricity, etc.

# Steps

1. **Extract Receipt Details:**
    - Read the receipt to identify the date of purchase and the store name, ensuring accuracy.
    - Accurately list each item purchased, including its name and price per item, and ensure product codes are clearly separated from descriptions.
2. **Tax Calculation:**
    - **If a receipt lacks explicit tax indication, default each item's tax to $0.00 ***
    - If the total price in the receipt matches with total of each items which means there are no tax applied on the receipt. which indicates NO TAX!!!!
    - Else, For each item, apply the relevant local tax regulations to determine if it's taxable and calculate the tax:
        - If taxable: Tax = Price per Item * Tax Rate
        - If non-taxable: Tax = $0.00
        - Verify the receipt's total tax sums to ensure consistency.
3. **Categorize Items:**
    - Classify each item into predefined categories including, but not limited to, Utility, Clothes, Luxury, Rent, and Electricity. Use clarity and logical reasoning to ensure correct categorization.
4. **Compile Results:**
    - Gather and organize all extracted and calculated information into a structured format suitable for CSV output.

# Output Format

The results should be formatted as a CSV file with each item's information displayed in a separate row, including the following columns:

- Date
- Store Name
- Store Address
- Item Name
- Price per Item
- Tax per Item
- Category

# Examples

**Example Input:**
[Image/Receipt data containing: Date, Store Name, List of Items with Prices]

**Example Output:**

` + codeFence + `
Date,Store Name,Store Address,Item Name,Price per Item,Tax per Item,Category
[YYYY-MM-DD],[Store Name],[Store Address],[Item 1 Name],[$Price1],[Tax1],[Category1]
[YYYY-MM-DD],[Store Name],[Store Address],[Item 2 Name],[$Price2],[Tax2],[Category2]
...
` + codeFence + `

(Note: Real examples should reflect the complexity of a detailed and accurate receipt, listing multiple items with varied characteristics accurately categorized.)

# Notes

- ***Pay careful attention to numeric product codes closely accompanying item names on receipts. Separate product codes from descriptions meticulously.***
- Always verify each listed price against the receipt subtotal and confirm that neither omissions nor incorrect identifications occur.
- Ensure tax calculations consider local tax regulations when not explicitly specified on the receipt.
- Allocate each item's tax correctly, and appropriately match items to their categories through a reasoned, logic‑driven approach.
- Maintain CSV formatting precision in data alignment and column content.
- Address edge cases like additional notes or applied discounts possibly present on receipts.`

// LoadPrompt returns the prompt stored at path, or DefaultReceiptPrompt when path is empty.
// It is meant to run once at startup.
func LoadPrompt(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultReceiptPrompt, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt file: %w", err)
	}
	p := strings.TrimSpace(string(b))
	if p == "" {
		return "", fmt.Errorf("prompt file %s is empty", path)
	}
	return p, nil
}
