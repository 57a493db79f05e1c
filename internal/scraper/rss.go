package scraper

import (
	"encoding/xml"
	"strings"
	"time"
)

// rssFeed covers the RSS 2.0 subset the scraper reads, decoded with
// stdlib encoding/xml.
type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	PubDate     string   `xml:"pubDate"`
	GUID        string   `xml:"guid"`
	Author      string   `xml:"author"`
	Categories  []string `xml:"category"`
}

// atomFeed covers the Atom subset the scraper reads.
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string      `xml:"title"`
	Links     []atomLink  `xml:"link"`
	Summary   string      `xml:"summary"`
	Content   string      `xml:"content"`
	Published string      `xml:"published"`
	Updated   string      `xml:"updated"`
	ID        string      `xml:"id"`
	Author    atomAuthor  `xml:"author"`
	Category  []atomCat   `xml:"category"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomCat struct {
	Term string `xml:"term,attr"`
}

// rawItem is the feed-agnostic intermediate shape before conversion to
// models.Article.
type rawItem struct {
	Title       string
	URL         string
	Snippet     string
	PublishedAt *time.Time
	Author      *string
	Tags        []string
	GUID        *string
}

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006-01-02T15:04:05Z07:00",
	"Mon, 2 Jan 2006 15:04:05 -0700",
}

func parsePubDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// parseRSSOrAtom sniffs the root element and decodes accordingly.
func parseRSSOrAtom(body []byte) ([]rawItem, error) {
	var probe struct {
		XMLName xml.Name
	}
	if err := xml.Unmarshal(body, &probe); err != nil {
		return nil, err
	}

	if probe.XMLName.Local == "feed" {
		var feed atomFeed
		if err := xml.Unmarshal(body, &feed); err != nil {
			return nil, err
		}
		return atomToRaw(feed), nil
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, err
	}
	return rssToRaw(feed), nil
}

func rssToRaw(feed rssFeed) []rawItem {
	items := make([]rawItem, 0, len(feed.Channel.Items))
	for _, it := range feed.Channel.Items {
		var author *string
		if it.Author != "" {
			a := it.Author
			author = &a
		}
		var guid *string
		if it.GUID != "" {
			g := it.GUID
			guid = &g
		}
		items = append(items, rawItem{
			Title:       it.Title,
			URL:         it.Link,
			Snippet:     it.Description,
			PublishedAt: parsePubDate(it.PubDate),
			Author:      author,
			Tags:        it.Categories,
			GUID:        guid,
		})
	}
	return items
}

func atomToRaw(feed atomFeed) []rawItem {
	items := make([]rawItem, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		link := ""
		for _, l := range e.Links {
			if l.Rel == "" || l.Rel == "alternate" {
				link = l.Href
				break
			}
		}
		snippet := e.Summary
		if snippet == "" {
			snippet = e.Content
		}
		published := e.Published
		if published == "" {
			published = e.Updated
		}
		var author *string
		if e.Author.Name != "" {
			a := e.Author.Name
			author = &a
		}
		var guid *string
		if e.ID != "" {
			g := e.ID
			guid = &g
		}
		tags := make([]string, 0, len(e.Category))
		for _, c := range e.Category {
			if c.Term != "" {
				tags = append(tags, c.Term)
			}
		}
		items = append(items, rawItem{
			Title:       e.Title,
			URL:         link,
			Snippet:     snippet,
			PublishedAt: parsePubDate(published),
			Author:      author,
			Tags:        tags,
			GUID:        guid,
		})
	}
	return items
}
