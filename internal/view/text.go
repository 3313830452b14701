package view

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// Text renders the page for a terminal.
type Text struct{}

func NewText() *Text { return &Text{} }

func (Text) AuthPrompt(mode AuthMode) (string, error) {
	if mode == RegisterMode {
		return "Register: feedline register <username> <password> [--email address]\n", nil
	}
	return "Login: feedline login <username> <password>\n", nil
}

func (Text) HomeFeed() (string, error) {
	header := color.New(color.Bold, color.FgHiCyan).Sprint("Home feed")
	return header + "\n" + PostsSlot + "\n", nil
}

func (Text) Profile(p ProfileData) (string, error) {
	var b strings.Builder
	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"User", "Followers", "Following"})
	table.SetAutoWrapText(false)
	table.Append([]string{p.Username, strconv.Itoa(p.FollowersCount), strconv.Itoa(p.FollowingCount)})
	table.Render()
	if p.ShowFollow {
		fmt.Fprintf(&b, "[%s] feedline follow %d\n", p.FollowLabel, p.ID)
	}
	b.WriteString(PostsSlot + "\n")
	return b.String(), nil
}

func (Text) Posts(posts []PostData) (string, error) {
	if len(posts) == 0 {
		return "", nil
	}
	var b strings.Builder
	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"#", "Author", "When", "Post", "Likes"})
	table.SetAutoWrapText(false)
	table.SetRowLine(true)
	for _, p := range posts {
		content := p.Content
		for _, c := range p.Comments {
			content += "\n  " + c.AuthorName + ": " + c.Content
		}
		table.Rich([]string{
			strconv.FormatInt(p.ID, 10),
			fmt.Sprintf("%s (%d)", p.AuthorName, p.AuthorID),
			p.Timestamp,
			content,
			p.LikeLabel,
		}, []tablewriter.Colors{{tablewriter.Bold}, {tablewriter.FgHiGreenColor}, {}, {}, {tablewriter.FgHiMagentaColor}})
	}
	table.Render()
	return b.String(), nil
}

func (Text) Message(text string) (string, error) {
	return text + "\n", nil
}

func (Text) Document(d DocumentData) (string, error) {
	var b strings.Builder
	for _, n := range d.Notices {
		c := color.New(color.FgHiGreen)
		if n.Level == LevelAlert {
			c = color.New(color.FgHiRed, color.Bold)
		}
		b.WriteString(c.Sprint(n.Text) + "\n")
	}
	b.WriteString(d.Body)
	return b.String(), nil
}
