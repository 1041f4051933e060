/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package preview

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// MaxNameLength is the longest preview name used verbatim.
const MaxNameLength = 20

var invalidNameChars = regexp.MustCompile(`[^-a-z0-9]`)

// NameFromBranch derives the preview name for a branch. Names longer than
// MaxNameLength keep their first 10 characters followed by the first 10 hex
// characters of the SHA-256 of the sanitized name.
func NameFromBranch(branch string) string {
	name := strings.TrimPrefix(branch, "refs/heads/")
	name = strings.ToLower(name)
	name = invalidNameChars.ReplaceAllString(name, "-")

	if len(name) <= MaxNameLength {
		return name
	}

	sum := sha256.Sum256([]byte(name))
	return name[:10] + hex.EncodeToString(sum[:])[:10]
}
