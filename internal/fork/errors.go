package fork

import "errors"

// errPromptNotFound is returned by a PromptRegistry with no entry for a
// style; it never escapes this package, since resolvePrompt always falls
// back to a built-in template.
var errPromptNotFound = errors.New("fork: no prompt registered for style")
