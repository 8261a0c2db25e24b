package app

// Key binding constants used in handleKey.
const (
	KeyQuit      = "q"
	KeyQuitUpper = "Q"
	KeyCtrlC     = "ctrl+c"
	KeySpace     = " "
	KeyEnter     = "enter"
	KeyPlay      = "p"
	KeyRerecord  = "r"
	KeySave      = "s"
	KeyBack      = "b"
	KeyEsc       = "esc"
)
