package dialogs

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const helpText = `[yellow]Agenda[-]

  [green]↑/↓[-]      Navegar
  [green]PgUp/PgDn[-] Rolar
  [green][[-]        Semana anterior
  [green]][-]        Próxima semana
  [green]t[-]        Semana atual
  [green]r[-]        Recarregar agora
  [green]e[-]        Editar no navegador
  [green]?[-]        Esta ajuda
  [green]q[-]        Sair

[yellow]Indicador[-]

  [#10b981]●[-]  conectado, atualizações em tempo real
  [#ef4444]●[-]  desconectado, reconectando a cada 3s

Pressione [green]Esc[-] ou [green]?[-] para fechar.`

func HelpDialog(onClose func()) *tview.TextView {
	tv := tview.NewTextView()
	tv.SetBorder(true).SetTitle(" Ajuda ").SetTitleAlign(tview.AlignLeft)
	tv.SetDynamicColors(true)
	tv.SetBackgroundColor(tcell.ColorDefault)
	tv.SetText(helpText)
	tv.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Rune() == '?' {
			onClose()
			return nil
		}
		return event
	})
	return tv
}
