// Package app contains the scenario runner. It loads a scenario, builds the
// layouts it names, and for every transfer launches the ranks, plans and
// executes the data motion, checks every written cell and reports the
// outcome. It is decoupled from any specific entrypoint like a CLI.
package app
