package canon

import "media_scrooper/models"

// BuiltinGroups are the source-specific resolution upgrades known for
// common image hosts. Every rule maps to a fixed value.
func BuiltinGroups() []models.RuleGroup {
	return []models.RuleGroup{
		{
			Name:  "flickr-size",
			Hosts: []string{"staticflickr.com", "flickr.com"},
			Rules: []models.Rule{
				Regex("flickr-large", `^(.*/\d+_[0-9a-f]+)(?:_[sqtmnzcwb])?\.(jpg|jpeg|png|gif)$`, "${1}_b.${2}"),
			},
		},
		{
			Name:  "behance-source",
			Hosts: []string{"behance.net"},
			Rules: []models.Rule{
				Regex("behance-modules", `/project_modules/(?:\d+|max_\d+|disp|fs|hd)/`, "/project_modules/source/"),
				Regex("behance-projects", `/projects/\d+/`, "/projects/source/"),
				Regex("behance-covers", `/covers/\d+/`, "/covers/original/"),
			},
		},
		{
			Name:      "deviantart-orig",
			Hosts:     []string{"wixmp.com"},
			KeepQuery: []string{"token"},
			Rules: []models.Rule{
				Regex("deviantart-suffix", `-(?:pre|small|250p|150p|350p|200h)\.`, "-orig."),
			},
		},
		{
			Name:      "deviantart-intermediary",
			Hosts:     []string{"wixmp.com"},
			KeepQuery: []string{"token"},
			Rules: []models.Rule{
				Regex("deviantart-intermediary", `/intermediary/`, "/"),
			},
		},
		{
			Name:  "artstation-large",
			Hosts: []string{"artstation.com"},
			Rules: []models.Rule{
				Regex("artstation-size", `/(?:smaller_square|small_square|micro_square|medium|small|smaller|default)/`, "/large/"),
			},
		},
		{
			Name:  "pinterest-originals",
			Hosts: []string{"pinimg.com"},
			Rules: []models.Rule{
				Regex("pinterest-size", `(pinimg\.com)/\d+x(?:\d+)?/`, "${1}/originals/"),
			},
		},
		{
			Name:  "wix-width",
			Hosts: []string{"wixstatic.com"},
			Rules: []models.Rule{Regex("wix-width", `([/,])w_\d+`, "${1}w_4000")},
		},
		{
			Name:  "wix-height",
			Hosts: []string{"wixstatic.com"},
			Rules: []models.Rule{Regex("wix-height", `([/,])h_\d+`, "${1}h_5000")},
		},
		{
			Name:  "wix-quality",
			Hosts: []string{"wixstatic.com"},
			Rules: []models.Rule{
				Regex("wix-quality", `([/,])q_\d+`, "${1}q_95"),
				Regex("wix-quality-auto", `,quality_auto`, ""),
			},
		},
		{
			Name:  "wix-encoding",
			Hosts: []string{"wixstatic.com"},
			Rules: []models.Rule{Regex("wix-encoding", `enc_(?:avif|webp)`, "enc_auto")},
		},
		{
			Name:  "modelmayhem-full",
			Hosts: []string{"modelmayhem.com"},
			Rules: []models.Rule{
				Regex("modelmayhem-suffix", `(?:_[mst])+\.([a-zA-Z]+)$`, ".${1}"),
			},
		},
		{
			Name:  "google-thumbnails",
			Hosts: []string{"gstatic.com"},
			Rules: []models.Rule{
				Reject("google-encrypted-thumb", `^https?://encrypted-tbn\d*\.`),
			},
		},
		{
			Name:  "google-size",
			Hosts: []string{"ggpht.com", "googleusercontent.com"},
			Rules: []models.Rule{
				Regex("google-size", `=[swh]\d+[^/]*$`, "=w3000-h3000"),
			},
		},
		{
			Name:  "invision-thumbs",
			Hosts: []string{"bellazon.com"},
			Rules: []models.Rule{
				Reject("invision-thumb", `\.thumb\.(?:jpe?g|png|gif|webp)`),
			},
		},
		{
			Name:  "reddit-preview",
			Hosts: []string{"redd.it"},
			Rules: []models.Rule{
				Regex("reddit-preview", `^https://preview\.redd\.it/`, "https://i.redd.it/"),
			},
		},
		{
			Name:      "twitter-orig",
			Hosts:     []string{"twimg.com"},
			KeepQuery: []string{"format", "name"},
			Rules: []models.Rule{
				SetQuery("twitter-name", "name", "orig"),
			},
		},
	}
}
