package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSeed = `
care_homes:
  - care_home_name: Oakview House
    business_address: 1 High Street, Leeds
    postcode: ls1 4ab
    manager_name: Priya Shah
    manager_email: manager@oakview.example
    manager_phone: "07700 900123"
    terms_agreed: true
    policies_agreed: true
workers:
  - first_name: Sam
    last_name: Okafor
    email: sam@example.com
    phone: "07700900456"
    qualifications: [NVQ3, Manual Handling]
    years_experience: 4
    terms_agreed: true
    privacy_agreed: true
    password: correct-horse
`

func TestParseSeed(t *testing.T) {
	seed, err := parseSeed(strings.NewReader(sampleSeed))
	require.NoError(t, err)

	require.Len(t, seed.CareHomes, 1)
	home := seed.CareHomes[0]
	assert.Equal(t, "Oakview House", home.Name)
	assert.Equal(t, "ls1 4ab", home.Postcode)
	assert.Equal(t, "07700 900123", home.ManagerPhone)
	assert.True(t, home.TermsAgreed)
	assert.Empty(t, home.Password)

	require.Len(t, seed.Workers, 1)
	worker := seed.Workers[0]
	assert.Equal(t, "Sam", worker.FirstName)
	assert.Equal(t, []string{"NVQ3", "Manual Handling"}, worker.Qualifications)
	assert.Equal(t, 4, worker.YearsExperience)
	assert.Equal(t, "correct-horse", worker.Password)
}

func TestParseSeed_Empty(t *testing.T) {
	seed, err := parseSeed(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, seed.CareHomes)
	assert.Empty(t, seed.Workers)
}

func TestParseSeed_UnknownSection(t *testing.T) {
	_, err := parseSeed(strings.NewReader("shifts:\n  - date: 2024-03-20\n"))
	assert.Error(t, err)
}

func TestParseSeed_WrongType(t *testing.T) {
	_, err := parseSeed(strings.NewReader("workers:\n  - years_experience: lots\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers[0]")
}

func TestSecretsCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"secrets"})

	require.NoError(t, root.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "JWT_SECRET="))
	assert.True(t, strings.HasPrefix(lines[2], "JWT_REFRESH_SECRET="))
	assert.NotEqual(t, strings.TrimPrefix(lines[1], "JWT_SECRET="), strings.TrimPrefix(lines[2], "JWT_REFRESH_SECRET="))
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"migrate", "seed", "sessions", "secrets"})
}
