package parser

import (
	"testing"
)

func TestParseExtraction(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantErr  bool
		expected *ExtractionResult
	}{
		{
			name: "valid JSON response",
			response: `{
				"student_name": "Jane Doe",
				"university_name": "University of Delhi",
				"degree_name": "Bachelor of Science",
				"date_of_issue": "2021-06-15",
				"extracted_text": "This certifies that Jane Doe has been awarded the degree of Bachelor of Science."
			}`,
			wantErr: false,
			expected: &ExtractionResult{
				StudentName:    "Jane Doe",
				UniversityName: "University of Delhi",
				DegreeName:     "Bachelor of Science",
				DateOfIssue:    "2021-06-15",
				ExtractedText:  "This certifies that Jane Doe has been awarded the degree of Bachelor of Science.",
			},
		},
		{
			name: "null fields are dropped",
			response: `{
				"student_name": "Rahul Sharma",
				"university_name": "null",
				"degree_name": "N/A",
				"date_of_issue": "not available",
				"extracted_text": "Rahul Sharma, Higher Secondary Examination."
			}`,
			wantErr: false,
			expected: &ExtractionResult{
				StudentName:   "Rahul Sharma",
				ExtractedText: "Rahul Sharma, Higher Secondary Examination.",
			},
		},
		{
			name: "markdown formatted JSON",
			response: `Here is the extracted data:

` + "```" + `json
{
  "student_name": "Amit Kumar",
  "university_name": "Anna University",
  "degree_name": "Master of Technology",
  "date_of_issue": "2019-04-02",
  "extracted_text": "ANNA UNIVERSITY. This is to certify that Amit Kumar..."
}
` + "```" + `

All fields were clearly legible.`,
			wantErr: false,
			expected: &ExtractionResult{
				StudentName:    "Amit Kumar",
				UniversityName: "Anna University",
				DegreeName:     "Master of Technology",
				DateOfIssue:    "2019-04-02",
				ExtractedText:  "ANNA UNIVERSITY. This is to certify that Amit Kumar...",
			},
		},
		{
			name: "markdown formatted JSON without language identifier",
			response: `Extraction result:

` + "```" + `
{
  "student_name": "Priya Singh",
  "university_name": "",
  "degree_name": "Diploma in Nursing",
  "date_of_issue": "",
  "extracted_text": ""
}
` + "```" + ``,
			wantErr: false,
			expected: &ExtractionResult{
				StudentName: "Priya Singh",
				DegreeName:  "Diploma in Nursing",
			},
		},
		{
			name:     "invalid JSON",
			response: `{"student_name": "Broken`,
			wantErr:  true,
			expected: nil,
		},
		{
			name: "no usable fields",
			response: `{
				"student_name": "null",
				"university_name": "",
				"degree_name": "",
				"date_of_issue": "",
				"extracted_text": ""
			}`,
			wantErr:  true,
			expected: nil,
		},
		{
			name:     "no JSON object at all",
			response: `I could not read the document clearly.`,
			wantErr:  true,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseExtraction(tt.response)

			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseExtraction() expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("ParseExtraction() unexpected error: %v", err)
				return
			}

			if result.StudentName != tt.expected.StudentName {
				t.Errorf("ParseExtraction() student_name = %v, want %v", result.StudentName, tt.expected.StudentName)
			}

			if result.UniversityName != tt.expected.UniversityName {
				t.Errorf("ParseExtraction() university_name = %v, want %v", result.UniversityName, tt.expected.UniversityName)
			}

			if result.DegreeName != tt.expected.DegreeName {
				t.Errorf("ParseExtraction() degree_name = %v, want %v", result.DegreeName, tt.expected.DegreeName)
			}

			if result.DateOfIssue != tt.expected.DateOfIssue {
				t.Errorf("ParseExtraction() date_of_issue = %v, want %v", result.DateOfIssue, tt.expected.DateOfIssue)
			}

			if result.ExtractedText != tt.expected.ExtractedText {
				t.Errorf("ParseExtraction() extracted_text = %v, want %v", result.ExtractedText, tt.expected.ExtractedText)
			}
		})
	}
}
