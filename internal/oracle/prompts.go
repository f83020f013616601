package oracle

const billSystemPrompt = "You are a billing assistant that reads emails and extracts bill details. Respond with a single JSON object and nothing else."

const billUserPrompt = `Decide whether the following email is a bill, invoice or payment request and extract its details.

From: {{.From}}
Subject: {{.Subject}}
Date: {{.Date}}

Content:
{{.Content}}

Return a JSON object with exactly these fields:
- "isBill": true if this is a bill or payment request, otherwise false
- "company": the company issuing the bill, or null
- "amount": the amount due as a number without currency symbols, or null
- "currency": the ISO 4217 currency code, or null
- "dueDate": the due date as YYYY-MM-DD, or null
- "billType": one of "electricity", "internet", "phone", "insurance", "subscription", "other", or null
- "status": one of "paid", "unpaid", "unknown"
- "confidence": an integer from 0 to 100 describing how sure you are`

const statementSystemPrompt = "You are a bookkeeping assistant that reads bank statements and lists their transactions. Respond with a JSON array and nothing else."

const statementUserPrompt = `List every transaction in the following bank statement.

From: {{.From}}
Subject: {{.Subject}}
Date: {{.Date}}

Content:
{{.Content}}

Return a JSON array. Each element must have exactly these fields:
- "date": the transaction date as YYYY-MM-DD
- "description": the merchant or description text as printed
- "amount": the absolute amount as a positive number
- "type": "debit" for money leaving the account, "credit" for money coming in

Return [] if there are no transactions.`
