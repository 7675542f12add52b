package knowledge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aihub/jobboard-ai/internal/models"
)

// CandidateText renders a jobseeker profile and resume for embedding.
func CandidateText(user *models.User, resumeText string) string {
	var b strings.Builder
	b.WriteString("Candidate Details\n")
	fmt.Fprintf(&b, "- name: %s\n", user.Name)
	fmt.Fprintf(&b, "- email: %s\n", user.Email)
	fmt.Fprintf(&b, "- about: %s\n", user.Description)
	b.WriteString("- job preferences:\n")
	fmt.Fprintf(&b, "  - roles: %s\n", strings.Join(user.PreferredRoles, ", "))
	fmt.Fprintf(&b, "  - salary expectation: %s\n", formatFloat(user.SalaryExpectation))
	fmt.Fprintf(&b, "  - location preference: %s\n", user.LocationPreference)
	fmt.Fprintf(&b, "  - remote preferred: %s\n", formatBool(user.RemotePreferred))
	fmt.Fprintf(&b, "  - notice period: %s\n", user.NoticePeriod)
	fmt.Fprintf(&b, "- resume text: %s\n", strings.TrimSpace(resumeText))
	return b.String()
}

// JobText renders a job post for embedding.
func JobText(job *models.JobPost) string {
	var b strings.Builder
	b.WriteString("Job Details\n")
	fmt.Fprintf(&b, "- job title: %s\n", job.Title)
	fmt.Fprintf(&b, "- description: %s\n", job.Description)
	fmt.Fprintf(&b, "- location: %s\n", job.Location)
	fmt.Fprintf(&b, "- job type: %s\n", job.JobType)
	fmt.Fprintf(&b, "- salary range: %s-%s\n", formatFloat(job.SalaryMin), formatFloat(job.SalaryMax))
	fmt.Fprintf(&b, "- experience required: %s-%s years\n", formatInt(job.ExperienceMin), formatInt(job.ExperienceMax))
	fmt.Fprintf(&b, "- required skills: %s\n", strings.Join(job.RequiredSkills, ", "))
	return b.String()
}

// ApplicationText renders the application's own fields.
func ApplicationText(app *models.Application) string {
	var b strings.Builder
	b.WriteString("Application Details\n")
	fmt.Fprintf(&b, "- status: %s\n", app.Status)
	fmt.Fprintf(&b, "- ai match score: %s\n", formatInt(app.AIFitScore))
	return b.String()
}

// CombinedApplicationText is the context embedded for an application:
// the application, the candidate and the job, in that order.
func CombinedApplicationText(app *models.Application, user *models.User, job *models.JobPost, resumeText string) string {
	return strings.Join([]string{
		ApplicationText(app),
		CandidateText(user, resumeText),
		JobText(job),
	}, "\n")
}

func formatFloat(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return "n/a"
	}
	return strconv.Itoa(*v)
}

func formatBool(v *bool) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatBool(*v)
}
