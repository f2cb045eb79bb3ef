// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI is a live watch view over one workflow run:
//  1. [ProgressView] : Stage-by-stage progress while the server generates recommendations
//  2. [ReviewView] : Browse the recommended tracks and apply edits while the run awaits input
//  3. [DoneView] : Final playlist summary or failure detail
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via typed tea.Msg values.
// State changes flow through a channel fed by the session store's subscription, providing non-blocking updates while a transport runs in the background.
//
// Keyboard navigation uses vim-style bindings (j/k, J/K, x, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
