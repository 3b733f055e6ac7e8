package banner

import (
	"headbench/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	ascii := `
    __                    ____                    __  
   / /_  ___  ____ _____/ / /_  ___  ____  _____/ /_ 
  / __ \/ _ \/ __ '/ __  / __ \/ _ \/ __ \/ ___/ __ \
 / / / /  __/ /_/ / /_/ / /_/ /  __/ / / / /__/ / / /
/_/ /_/\___/\__,_/\__,_/_.___/\___/_/ /_/\___/_/ /_/ `

	return "\n" + style.Render(ascii) + "\n"
}
