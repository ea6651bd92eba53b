package mcpserver

// MelodyFormat describes the melody query syntax accepted by the
// search_modules and compile_melody tools.
const MelodyFormat = `# Melody Query Format

A melody query matches the sequence of pitch intervals in a module's pattern
data, so it finds a tune regardless of key.

## Typed input

- A phrase is a list of signed semitone intervals separated by spaces:
  ` + "`" + `2 2 1` + "`" + ` means up a whole tone, up a whole tone, up a semitone.
- ` + "`" + `0` + "`" + ` repeats the previous note. Tokens that are not integers count as 0.
- Separate several phrases with ` + "`" + `|` + "`" + `: ` + "`" + `2 2 1|-5 -2` + "`" + `. A module matches when
  every phrase occurs somewhere in it, in any channel or subsong.
- Intervals wrap at 8 bits, so 200 and -56 are the same interval.

## Pasted pattern data

Pattern data copied from OpenMPT or ModPlug Tracker (text starting with
` + "`" + `ModPlug Tracker` + "`" + `) is converted per channel: the first note of a channel sets
the reference pitch and every later note adds its distance to the previous
one. Each channel with notes becomes one phrase.

## Example

The opening of "Ode to Joy" (E E F G G F E D) is:

` + "```" + `
0 1 2 0 -2 -1 -2
` + "```" + `
`
