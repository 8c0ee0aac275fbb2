// Package assets holds the fixed file contents every task repository gets:
// the fallback application page and the README/LICENSE committed beside the
// generated artifact.
package assets

import (
	"fmt"
	"strings"
)

// FallbackCalculator is the artifact served whenever generation fails. It is
// a complete, working page so the pipeline always has something to publish.
const FallbackCalculator = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Calculator</title>
<script src="https://cdn.tailwindcss.com"></script>
</head>
<body class="bg-gray-900 min-h-screen flex items-center justify-center">
<div class="bg-gray-800 rounded-2xl shadow-2xl p-6 w-80">
<input id="display" type="text" readonly
  class="w-full mb-4 p-4 text-right text-2xl bg-gray-700 text-white rounded-lg" value="0">
<div id="keys" class="grid grid-cols-4 gap-2"></div>
</div>
<script>
const keys = ["7","8","9","/","4","5","6","*","1","2","3","-","0",".","=","+","C"];
const display = document.getElementById("display");
const grid = document.getElementById("keys");
let expr = "";
keys.forEach(k => {
  const b = document.createElement("button");
  b.textContent = k;
  b.className = "p-4 text-xl rounded-lg text-white " +
    (k === "=" ? "bg-blue-600 hover:bg-blue-500" :
     k === "C" ? "bg-red-600 hover:bg-red-500 col-span-4" :
     "bg-gray-600 hover:bg-gray-500");
  b.onclick = () => {
    if (k === "C") { expr = ""; display.value = "0"; return; }
    if (k === "=") {
      try { expr = String(Function('"use strict";return (' + expr + ')')()); }
      catch { expr = ""; display.value = "Error"; return; }
      display.value = expr;
      return;
    }
    expr += k;
    display.value = expr;
  };
  grid.appendChild(b);
});
</script>
</body>
</html>
`

// LicenseMIT is committed verbatim as LICENSE.
const LicenseMIT = `MIT License

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
`

// Readme renders the README committed beside the generated app file.
func Readme(task, brief string) string {
	brief = strings.TrimSpace(brief)
	if brief == "" {
		brief = "(no brief provided)"
	}
	return fmt.Sprintf(`# %s

Single-file web application generated by pageforge.

## Brief

%s

## Usage

Open index.html in a browser, or visit the GitHub Pages URL for this
repository.
`, task, brief)
}
