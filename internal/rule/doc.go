// Package rule parses and matches permission rules such as "Read",
// "Read(./.env)", "Edit(src/**)" and "Bash(npm run:*)".
//
// A rule names a tool, or a tool group, and optionally an argument pattern.
// How the argument is compared depends on the tool:
//
//   - Bash-like tools compare the command exactly, or by prefix when the
//     rule ends in ":*". A prefix match is rejected when the rest of the
//     command contains a shell operator, so "Bash(npm run:*)" does not match
//     "npm run build && rm -rf /".
//   - File tools normalize both sides against the working directory and
//     match with doublestar globs.
//   - Every other tool compares the argument exactly.
package rule
