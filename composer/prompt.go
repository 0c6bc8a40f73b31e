// prompt.go holds the fixed OceanBase prompt template.
//
// The template is the only prompt the composer ever sends: a preamble with
// the OceanBase rules, one worked example fenced by "---" lines, and the
// user's schema and description followed by the "Query:" cue.
package composer

import "strings"

// FormState is the two-field input form.
type FormState struct {
	Schema      string
	Description string
}

const promptPreamble = `Generate OceanBase SQL with comments based on provided schema and description.
For OceanBase SQL Requirements:

1. To use multiple line comments in your SQL, start with '#' . Any text between  '#' will be ignored (will not be executed).
2. DO NOT use SQL "SELECT ... FOR SHARE ..." syntax.
3. DO NOT use SQL "SHOW WARNINGS" syntax.
`

const promptExample = `

Input example:
---
Schema:
table: Users (UserID INT PRIMARY KEY AUTO_INCREMENT,
 FirstName VARCHAR(50) NOT NULL,
 LastName VARCHAR(50) NOT NULL,
 Email VARCHAR(100) NOT NULL UNIQUE,
 Password VARCHAR(255) NOT NULL).

Description:
Get 5 users whose first name contains 'Amber', case-insensitive.

SQL example:
# Get 5 users whose first name contains 'Amber', case-insensitive.
SELECT *
FROM Users
WHERE LOWER(FirstName) LIKE '%amber%';
---

`

// delimitedRule is appended to the rule list in delimited snippet mode.
const delimitedRule = "4. When you give more than one query, put a line containing only " +
	SnippetDelimiter + " between the queries.\n"

// BuildPrompt substitutes the form values verbatim into the fixed template.
// Empty values are allowed and leave the placeholders empty.
func BuildPrompt(form FormState) string {
	return buildPrompt(form, "")
}

// BuildDelimitedPrompt is BuildPrompt with an extra rule asking the model
// to separate alternative queries with SnippetDelimiter lines.
func BuildDelimitedPrompt(form FormState) string {
	return buildPrompt(form, delimitedRule)
}

func buildPrompt(form FormState, extraRule string) string {
	var b strings.Builder
	b.Grow(len(promptPreamble) + len(promptExample) + len(form.Schema) + len(form.Description) + 64)
	b.WriteString(promptPreamble)
	b.WriteString(extraRule)
	b.WriteString(promptExample)
	b.WriteString("Schema:\n")
	b.WriteString(form.Schema)
	b.WriteString("\nDescription:\n")
	b.WriteString(form.Description)
	b.WriteString("\nQuery:")
	return b.String()
}
