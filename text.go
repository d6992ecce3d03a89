package main

// Project is one showcase entry. Title and tech names are not translated;
// the description lives in the content tree under DescriptionKey.
type Project struct {
	Slug           string   `json:"slug"`
	Title          string   `json:"title"`
	DescriptionKey string   `json:"-"`
	Tech           []string `json:"tech"`
	GitHubLink     string   `json:"githubLink"`
	LiveLink       string   `json:"liveLink,omitempty"`
	Category       string   `json:"category"`
	Languages      string   `json:"languages,omitempty"`
}

// ProjectView is a Project with its description resolved for a visitor.
type ProjectView struct {
	Project
	Description   string `json:"description"`
	CategoryLabel string `json:"categoryLabel"`
}

var Projects = []Project{
	{
		Slug:           "escrowDapp",
		Title:          "Crypto Escrow DApp",
		DescriptionKey: "projects.items.escrowDapp.description",
		Tech:           []string{"TypeScript", "Rust", "Solidity", "Next.js"},
		GitHubLink:     "https://github.com/Dipraise1/escrowdapp",
		LiveLink:       "https://escrowdapp-cyan.vercel.app",
		Category:       "blockchain",
		Languages:      "TypeScript 48.9%, Rust 27.3%, Solidity 15.1%, JavaScript 7.7%",
	},
	{
		Slug:           "fxAiAgent",
		Title:          "FX AI Agent",
		DescriptionKey: "projects.items.fxAiAgent.description",
		Tech:           []string{"Python", "TensorFlow", "WebSocket", "Machine Learning"},
		GitHubLink:     "https://github.com/Dipraise1/fx-ai-agent",
		Category:       "ai",
		Languages:      "Python 98.4%, Shell 1.4%, Dockerfile 0.2%",
	},
	{
		Slug:           "profitLossAnalyzer",
		Title:          "Profit Loss Analyzer",
		DescriptionKey: "projects.items.profitLossAnalyzer.description",
		Tech:           []string{"Rust", "JavaScript", "CSS", "Financial APIs"},
		GitHubLink:     "https://github.com/Dipraise1/profitlossanalyzer",
		Category:       "finance",
		Languages:      "Rust 62.5%, CSS 17.2%, JavaScript 12.1%, HTML 6.5%",
	},
	{
		Slug:           "theBasement",
		Title:          "The Basement",
		DescriptionKey: "projects.items.theBasement.description",
		Tech:           []string{"Solidity", "React", "TypeScript", "Web3"},
		GitHubLink:     "https://github.com/Dipraise1/thebasement",
		Category:       "defi",
	},
}

// Testimonial is a client quote. Only the quote itself is translated.
type Testimonial struct {
	Name     string `json:"name"`
	Role     string `json:"role"`
	Company  string `json:"company"`
	Location string `json:"location"`
	Avatar   string `json:"avatar"`
	Rating   int    `json:"rating"`
	TextKey  string `json:"-"`
	Project  string `json:"project"`
	Duration string `json:"duration"`
	Value    string `json:"value"`
}

var FeaturedTestimonial = Testimonial{
	Name:     "Sarah Chen",
	Role:     "CEO",
	Company:  "DeFi Innovations",
	Location: "San Francisco, CA",
	Avatar:   "https://images.unsplash.com/photo-1438761681033-6461ffad8d80?w=150&h=150&fit=crop&crop=face",
	Rating:   5,
	TextKey:  "testimonials.featured.text",
	Project:  "DeFi Yield Optimization Protocol",
	Duration: "3 months",
	Value:    "$2.5M TVL",
}

// TestimonialView is a Testimonial with its quote resolved for a visitor.
type TestimonialView struct {
	Testimonial
	Text  string     `json:"text"`
	Stars []struct{} `json:"-"`
}

func testimonialView(t func(string) string, tm Testimonial) TestimonialView {
	return TestimonialView{
		Testimonial: tm,
		Text:        t(tm.TextKey),
		Stars:       make([]struct{}, tm.Rating),
	}
}

// projectViews resolves the showcase for one visitor, optionally filtered
// by category ("" or "all" keeps everything).
func projectViews(t func(string) string, category string) []ProjectView {
	views := make([]ProjectView, 0, len(Projects))
	for _, p := range Projects {
		if category != "" && category != "all" && p.Category != category {
			continue
		}
		views = append(views, ProjectView{
			Project:       p,
			Description:   t(p.DescriptionKey),
			CategoryLabel: t("projects." + p.Category),
		})
	}
	return views
}
