// Package catalog holds the VTU subject listing used to key universal
// groups. The data is static per academic scheme; each universal group's
// subject code comes from here.
package catalog

// Branch is an engineering branch offered under the scheme.
type Branch struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Subject is one credited subject in a branch's semester.
type Subject struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Branches lists the supported branches in display order.
func Branches() []Branch {
	out := make([]Branch, len(branches))
	copy(out, branches)
	return out
}

// Semesters lists the semesters the catalog covers.
func Semesters() []int {
	return []int{1, 2, 3, 4, 5, 6, 7}
}

// Subjects returns the subjects for a branch and semester, or nil when the
// combination is not in the catalog.
func Subjects(branchID string, semester int) []Subject {
	bySem, ok := subjects[branchID]
	if !ok {
		return nil
	}
	subs, ok := bySem[semester]
	if !ok {
		return nil
	}
	out := make([]Subject, len(subs))
	copy(out, subs)
	return out
}

// Lookup finds a subject by code. Codes shared across branches (first-year
// stream subjects) resolve to the same name, so any match is authoritative.
func Lookup(code string) (Subject, bool) {
	s, ok := byCode[code]
	return s, ok
}

var branches = []Branch{
	{ID: "CSE", Name: "Computer Science & Engineering"},
	{ID: "ISE", Name: "Information Science & Engineering"},
	{ID: "ECE", Name: "Electronics & Communication"},
	{ID: "ME", Name: "Mechanical Engineering"},
	{ID: "CV", Name: "Civil Engineering"},
	{ID: "AI", Name: "Artificial Intelligence & ML"},
}

var subjects = map[string]map[int][]Subject{
	"CSE": {
		1: {
			{Code: "22MATS11", Name: "Mathematics for CSE Stream - I"},
			{Code: "22PHYS12", Name: "Physics for CSE Stream"},
			{Code: "22POP13", Name: "Principles of Programming using C"},
			{Code: "22ENG16", Name: "Communicative English"},
			{Code: "22IDT18", Name: "Innovation and Design Thinking"},
		},
		2: {
			{Code: "22MATS21", Name: "Mathematics for CSE Stream - II"},
			{Code: "22CHEM22", Name: "Chemistry for CSE Stream"},
			{Code: "22PLC25B", Name: "Introduction to Python Programming"},
			{Code: "22ENG26", Name: "Professional Writing Skills in English"},
			{Code: "22SFH28", Name: "Scientific Foundations of Health"},
		},
		3: {
			{Code: "22MAT31", Name: "Mathematics for Computer Science - III"},
			{Code: "22CS32", Name: "Digital Design and Computer Organization"},
			{Code: "22CS33", Name: "Operating Systems"},
			{Code: "22CS34", Name: "Data Structures and Applications"},
			{Code: "22CS35", Name: "Object Oriented Programming with Java"},
		},
		4: {
			{Code: "22MAT41", Name: "Mathematical Foundations for Computing"},
			{Code: "22CS42", Name: "Design and Analysis of Algorithms"},
			{Code: "22CS43", Name: "Microcontrollers and Embedded Systems"},
			{Code: "22CS44", Name: "Biology for Engineers"},
			{Code: "22CS45", Name: "Constitution of India & Professional Ethics"},
		},
		5: {
			{Code: "22CS51", Name: "Automata Theory and Computability"},
			{Code: "22CS52", Name: "Computer Networks"},
			{Code: "22CS53", Name: "Database Management Systems"},
			{Code: "22CS54", Name: "Artificial Intelligence and Machine Learning"},
			{Code: "22CS55", Name: "Research Methodology and IPR"},
		},
		6: {
			{Code: "22CS61", Name: "Software Engineering & Project Management"},
			{Code: "22CS62", Name: "Full Stack Development"},
			{Code: "22CS63", Name: "Data Science and Visualization"},
			{Code: "22CS64", Name: "Professional Elective - I"},
			{Code: "22CS65", Name: "Open Elective - I"},
		},
		7: {
			{Code: "22CS71", Name: "Professional Elective - II"},
			{Code: "22CS72", Name: "Professional Elective - III"},
			{Code: "22CS73", Name: "Open Elective - II"},
			{Code: "22CS74", Name: "Project Work Phase - 1"},
		},
	},
	"ISE": {
		1: {
			{Code: "22MATS11", Name: "Mathematics for CSE Stream - I"},
			{Code: "22PHYS12", Name: "Physics for CSE Stream"},
			{Code: "22POP13", Name: "Principles of Programming using C"},
			{Code: "22ENG16", Name: "Communicative English"},
			{Code: "22IDT18", Name: "Innovation and Design Thinking"},
		},
		2: {
			{Code: "22MATS21", Name: "Mathematics for CSE Stream - II"},
			{Code: "22CHEM22", Name: "Chemistry for CSE Stream"},
			{Code: "22PLC25B", Name: "Introduction to Python Programming"},
			{Code: "22ENG26", Name: "Professional Writing Skills in English"},
			{Code: "22SFH28", Name: "Scientific Foundations of Health"},
		},
		3: {
			{Code: "22MAT31", Name: "Mathematics for Computer Science - III"},
			{Code: "22IS32", Name: "Digital Electronics and Microprocessors"},
			{Code: "22IS33", Name: "Operating Systems"},
			{Code: "22IS34", Name: "Data Structures and Applications"},
			{Code: "22IS35", Name: "Object Oriented Programming with Java"},
		},
		4: {
			{Code: "22MAT41", Name: "Mathematical Foundations for Computing"},
			{Code: "22IS42", Name: "Design and Analysis of Algorithms"},
			{Code: "22IS43", Name: "Database Management Systems"},
			{Code: "22IS44", Name: "Object Oriented Modeling and Design"},
			{Code: "22IS45", Name: "User Interface Design"},
		},
		5: {
			{Code: "22IS51", Name: "Software Engineering"},
			{Code: "22IS52", Name: "Computer Networks"},
			{Code: "22IS53", Name: "Web Technology and its Applications"},
			{Code: "22IS54", Name: "Data Mining and Warehousing"},
			{Code: "22IS55", Name: "Unix Programming"},
		},
		6: {
			{Code: "22IS61", Name: "File Structures"},
			{Code: "22IS62", Name: "Software Testing"},
			{Code: "22IS63", Name: "Professional Elective - I"},
			{Code: "22IS64", Name: "Open Elective - I"},
			{Code: "22IS65", Name: "Mini Project"},
		},
		7: {
			{Code: "22IS71", Name: "Professional Elective - II"},
			{Code: "22IS72", Name: "Professional Elective - III"},
			{Code: "22IS73", Name: "Open Elective - II"},
			{Code: "22IS74", Name: "Project Work Phase - 1"},
		},
	},
	"ECE": {
		1: {
			{Code: "22MATE11", Name: "Mathematics for EEE Stream - I"},
			{Code: "22PHY12", Name: "Physics for EEE Stream"},
			{Code: "22BEE13", Name: "Basic Electrical Engineering"},
			{Code: "22ENG16", Name: "Communicative English"},
			{Code: "22IDT18", Name: "Innovation and Design Thinking"},
		},
		2: {
			{Code: "22MATE21", Name: "Mathematics for EEE Stream - II"},
			{Code: "22CHEM22", Name: "Chemistry for EEE Stream"},
			{Code: "22BEC25", Name: "Basic Electronics"},
			{Code: "22ENG26", Name: "Professional Writing Skills in English"},
			{Code: "22SFH28", Name: "Scientific Foundations of Health"},
		},
		3: {
			{Code: "22EC31", Name: "Transform Calculus, Fourier Series"},
			{Code: "22EC32", Name: "Digital Logic"},
			{Code: "22EC33", Name: "Network Analysis"},
			{Code: "22EC34", Name: "Analog Electronic Circuits"},
			{Code: "22EC35", Name: "Electronic Instrumentation"},
		},
		4: {
			{Code: "22EC41", Name: "Complex Analysis, Probability and Statistical Methods"},
			{Code: "22EC42", Name: "Analog and Digital Communication"},
			{Code: "22EC43", Name: "Control Systems"},
			{Code: "22EC44", Name: "Engineering Electromagnetics"},
			{Code: "22EC45", Name: "Signals and Systems"},
		},
		5: {
			{Code: "22EC51", Name: "Digital Signal Processing"},
			{Code: "22EC52", Name: "Microcontrollers"},
			{Code: "22EC53", Name: "Information Theory and Coding"},
			{Code: "22EC54", Name: "Professional Elective - I"},
			{Code: "22EC55", Name: "Open Elective - I"},
		},
		6: {
			{Code: "22EC61", Name: "Computer Networks"},
			{Code: "22EC62", Name: "VLSI Design"},
			{Code: "22EC63", Name: "Professional Elective - II"},
			{Code: "22EC64", Name: "Open Elective - II"},
			{Code: "22EC65", Name: "Mini Project"},
		},
		7: {
			{Code: "22EC71", Name: "Professional Elective - III"},
			{Code: "22EC72", Name: "Professional Elective - IV"},
			{Code: "22EC73", Name: "Open Elective - III"},
			{Code: "22EC74", Name: "Project Work Phase - 1"},
		},
	},
	"ME": {
		1: {{Code: "22MATM11", Name: "Mathematics for ME Stream - I"}},
		2: {{Code: "22MATM21", Name: "Mathematics for ME Stream - II"}},
		3: {{Code: "22ME31", Name: "Fluid Mechanics"}},
		4: {{Code: "22ME41", Name: "Material Science"}},
		5: {{Code: "22ME51", Name: "Design of Machine Elements"}},
		6: {{Code: "22ME61", Name: "Heat Transfer"}},
		7: {{Code: "22ME71", Name: "Project Work"}},
	},
	"CV": {
		1: {{Code: "22MATC11", Name: "Mathematics for CV Stream - I"}},
		2: {{Code: "22MATC21", Name: "Mathematics for CV Stream - II"}},
		3: {{Code: "22CV31", Name: "Strength of Materials"}},
		4: {{Code: "22CV41", Name: "Analysis of Structures"}},
		5: {{Code: "22CV51", Name: "Geotechnical Engineering"}},
		6: {{Code: "22CV61", Name: "Transportation Engineering"}},
		7: {{Code: "22CV71", Name: "Project Work"}},
	},
	"AI": {
		1: {{Code: "22MATS11", Name: "Mathematics for CSE Stream - I"}},
		2: {{Code: "22MATS21", Name: "Mathematics for CSE Stream - II"}},
		3: {{Code: "22AI31", Name: "Data Structures & Algorithms"}},
		4: {{Code: "22AI41", Name: "Machine Learning I"}},
		5: {{Code: "22AI51", Name: "Deep Learning"}},
		6: {{Code: "22AI61", Name: "Natural Language Processing"}},
		7: {{Code: "22AI71", Name: "Project Work"}},
	},
}

var byCode = func() map[string]Subject {
	m := make(map[string]Subject)
	for _, bySem := range subjects {
		for _, subs := range bySem {
			for _, s := range subs {
				m[s.Code] = s
			}
		}
	}
	return m
}()
